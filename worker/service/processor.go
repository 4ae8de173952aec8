package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"mediaconv/worker/bundle"
	"mediaconv/worker/converter"
	"mediaconv/worker/kafka"
	"mediaconv/worker/media"
	"mediaconv/worker/repository"
	"mediaconv/worker/transcribe"
)

// StatusCache is the slice of redis the processor writes to; satisfied by
// cache.StatusCache.
type StatusCache interface {
	SetStatus(ctx context.Context, taskID string, status string) error
	SetProgress(ctx context.Context, taskID string, progress int) error
}

// Sweeper lets purge tasks trigger a retention sweep on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Config struct {
	OutputDir       string
	WorkDir         string
	TimeLimit       time.Duration
	MaxAttempts     int
	RetryDelay      time.Duration
	DefaultLanguage string
}

type Processor struct {
	repo    repository.Repository
	cache   StatusCache
	ffmpeg  *media.FFmpeg
	images  *converter.Converter
	engines *transcribe.EngineSet
	sweeper Sweeper
	cfg     Config
	logger  *zap.Logger
}

func NewProcessor(
	repo repository.Repository,
	cache StatusCache,
	ffmpeg *media.FFmpeg,
	images *converter.Converter,
	engines *transcribe.EngineSet,
	sweeper Sweeper,
	cfg Config,
	logger *zap.Logger,
) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Processor{
		repo:    repo,
		cache:   cache,
		ffmpeg:  ffmpeg,
		images:  images,
		engines: engines,
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger,
	}
}

// Process runs one task end to end. It never returns an error to the
// consumer loop: every outcome lands on the task row instead.
func (p *Processor) Process(ctx context.Context, msg *kafka.TaskMessage) {
	log := p.logger.With(
		zap.String("trace_id", msg.TraceID),
		zap.String("task_id", msg.TaskID),
		zap.String("kind", msg.Kind),
	)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.TimeLimit)
	defer cancel()

	task, err := p.repo.GetTask(ctx, msg.TaskID)
	if err != nil {
		log.Error("Failed to load task", zap.Error(err))
		return
	}

	if err := p.repo.MarkProcessing(ctx, task.ID); err != nil {
		if errors.Is(err, repository.ErrTaskFinished) {
			// Redelivered message for a task another worker already finished.
			log.Info("Skipping finished task")
			return
		}
		log.Error("Failed to claim task", zap.Error(err))
		return
	}
	_ = p.cache.SetStatus(ctx, task.ID, "processing")

	report := func(pct int) {
		if err := p.repo.SetProgress(ctx, task.ID, pct); err != nil {
			log.Debug("Progress update failed", zap.Error(err))
		}
		_ = p.cache.SetProgress(ctx, task.ID, pct)
	}

	start := time.Now()
	outputPath, err := p.runWithRetry(ctx, task, report, log)

	// The task context may already be past its deadline; the final status
	// write must still land.
	finalCtx, finalCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finalCancel()

	if err != nil {
		log.Error("Task failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		if ferr := p.repo.Fail(finalCtx, task.ID, err.Error()); ferr != nil && !errors.Is(ferr, repository.ErrTaskFinished) {
			log.Error("Failed to record failure", zap.Error(ferr))
		}
		_ = p.cache.SetStatus(finalCtx, task.ID, "failed")
		return
	}

	if cerr := p.repo.Complete(finalCtx, task.ID, outputPath); cerr != nil && !errors.Is(cerr, repository.ErrTaskFinished) {
		log.Error("Failed to record completion", zap.Error(cerr))
		return
	}
	_ = p.cache.SetStatus(finalCtx, task.ID, "completed")
	_ = p.cache.SetProgress(finalCtx, task.ID, 100)

	log.Info("Task completed",
		zap.String("output", outputPath),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (p *Processor) runWithRetry(ctx context.Context, task *repository.Task, report func(int), log *zap.Logger) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		out, err := p.runKind(ctx, task, report)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if IsPermanent(err) || ctx.Err() != nil {
			return "", err
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}

		log.Warn("Attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", p.cfg.RetryDelay),
			zap.Error(err),
		)
		select {
		case <-time.After(p.cfg.RetryDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", p.cfg.MaxAttempts, lastErr)
}

// runKind dispatches on the task kind. A panicking conversion is recovered
// here so one poisoned input cannot take the worker down.
func (p *Processor) runKind(ctx context.Context, task *repository.Task, report func(int)) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("conversion panicked: %v", r))
		}
	}()

	if needsInput(task.Kind) {
		if _, statErr := os.Stat(task.FilePath); statErr != nil {
			return "", Permanent(fmt.Errorf("input file unavailable: %w", statErr))
		}
	}
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	switch task.Kind {
	case "transcribe":
		return p.handleTranscribe(ctx, task, report)
	case "extract_audio":
		return p.handleExtractAudio(ctx, task, report)
	case "gif":
		return p.handleGIF(ctx, task, report)
	case "image":
		return p.handleImage(ctx, task, report)
	case "archive":
		return p.handleArchive(ctx, task, report)
	case "purge":
		return p.handlePurge(ctx, report)
	default:
		return "", Permanent(fmt.Errorf("unknown task kind: %s", task.Kind))
	}
}

func needsInput(kind string) bool {
	switch kind {
	case "archive", "purge":
		return false
	default:
		return true
	}
}

func (p *Processor) handleTranscribe(ctx context.Context, task *repository.Task, report func(int)) (string, error) {
	opts := transcribe.DefaultOptions()
	opts.Language = optString(task.Options, "language", p.cfg.DefaultLanguage)
	opts.Denoise = optBool(task.Options, "denoise", false)
	opts.Segmenting.SplitOnSilence = optBool(task.Options, "split_on_silence", true)
	if w := optFloat(task.Options, "window", 0); w > 0 {
		opts.Segmenting.Window = w
	}

	pipeline := transcribe.NewPipeline(p.ffmpeg, p.engines, p.cfg.WorkDir, opts, p.logger)
	outBase := filepath.Join(p.cfg.OutputDir, task.ID)

	transcript, err := pipeline.Run(ctx, task.FilePath, outBase, func(stage string, pct int) {
		report(pct)
	})
	if err != nil {
		return "", err
	}
	// The plain-text transcript is the primary result; SRT and JSON sit
	// next to it under the same base name.
	return transcript.TXTPath, nil
}

func (p *Processor) handleExtractAudio(ctx context.Context, task *repository.Task, report func(int)) (string, error) {
	format := task.OutputFormat
	if format == "" {
		format = "mp3"
	}
	out := filepath.Join(p.cfg.OutputDir, task.ID+"."+format)

	report(10)
	if err := p.ffmpeg.ExtractAudio(ctx, task.FilePath, out, format); err != nil {
		if errors.Is(err, media.ErrUnsupportedAudioFormat) {
			return "", Permanent(err)
		}
		return "", err
	}
	report(95)
	return out, nil
}

func (p *Processor) handleGIF(ctx context.Context, task *repository.Task, report func(int)) (string, error) {
	out := filepath.Join(p.cfg.OutputDir, task.ID+".gif")
	opts := media.GIFOptions{
		FPS:      optInt(task.Options, "fps", 10),
		Width:    optInt(task.Options, "width", 480),
		Start:    optFloat(task.Options, "start", 0),
		Duration: optFloat(task.Options, "duration", 0),
	}

	report(10)
	if err := p.ffmpeg.GIF(ctx, task.FilePath, out, opts); err != nil {
		return "", err
	}
	report(95)
	return out, nil
}

func (p *Processor) handleImage(ctx context.Context, task *repository.Task, report func(int)) (string, error) {
	format := task.OutputFormat
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(task.FilePath)), ".")
	}
	out := filepath.Join(p.cfg.OutputDir, task.ID+"."+format)

	report(10)
	err := p.images.Convert(task.FilePath, out, converter.Options{
		Format:  format,
		Width:   optInt(task.Options, "width", 0),
		Height:  optInt(task.Options, "height", 0),
		Crop:    optBool(task.Options, "crop", false),
		Quality: optInt(task.Options, "quality", 0),
	})
	if err != nil {
		// Bad pixels stay bad on retry.
		return "", Permanent(err)
	}
	report(95)
	return out, nil
}

func (p *Processor) handleArchive(ctx context.Context, task *repository.Task, report func(int)) (string, error) {
	ids := optStringSlice(task.Options, "task_ids")
	if len(ids) == 0 {
		return "", Permanent(errors.New("archive task has no task_ids"))
	}

	var files []string
	for i, id := range ids {
		member, err := p.repo.GetTask(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				continue
			}
			return "", err
		}
		if member.Status == "completed" && member.OutputPath != "" {
			files = append(files, member.OutputPath)
		}
		report(10 + 70*(i+1)/len(ids))
	}
	if len(files) == 0 {
		return "", Permanent(errors.New("no completed member tasks to archive"))
	}

	out := filepath.Join(p.cfg.OutputDir, task.ID+".zip")
	if err := bundle.Zip(out, files); err != nil {
		return "", err
	}
	report(95)
	return out, nil
}

func (p *Processor) handlePurge(ctx context.Context, report func(int)) (string, error) {
	report(10)
	removed, err := p.sweeper.Sweep(ctx)
	if err != nil {
		return "", err
	}
	p.logger.Info("Purge task swept files", zap.Int("removed", removed))
	report(95)
	return "", nil
}
