package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"mediaconv/worker/media"
)

// Progress stages reported by the pipeline, in order.
const (
	StagePreparing    = "preparing"
	StageSegmenting   = "segmenting"
	StageTranscribing = "transcribing"
	StageExporting    = "exporting"
)

const (
	silenceNoiseDB = -35.0
	silenceMinDur  = 0.6
)

type Options struct {
	Language   string
	Denoise    bool
	Segmenting SegmentOptions
}

func DefaultOptions() Options {
	return Options{
		Language:   "auto",
		Segmenting: DefaultSegmentOptions(),
	}
}

// Pipeline runs the full audio-to-text flow: prepare a normalized WAV,
// plan speech segments around detected silence, transcribe each segment
// through the engine set, then assemble and export the transcript.
type Pipeline struct {
	ffmpeg  *media.FFmpeg
	engines *EngineSet
	workDir string
	opts    Options
	logger  *zap.Logger
}

func NewPipeline(ffmpeg *media.FFmpeg, engines *EngineSet, workDir string, opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		ffmpeg:  ffmpeg,
		engines: engines,
		workDir: workDir,
		opts:    opts,
		logger:  logger,
	}
}

// Run executes the pipeline. report is called with a monotonically
// increasing percentage as stages and segments finish.
func (p *Pipeline) Run(ctx context.Context, inputPath, outBase string, report func(stage string, pct int)) (*Transcript, error) {
	if report == nil {
		report = func(string, int) {}
	}
	base := filepath.Base(outBase)

	report(StagePreparing, 0)
	wavPath := filepath.Join(p.workDir, base+"_prep.wav")
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	if err := p.ffmpeg.TranscodeWAV(ctx, inputPath, wavPath, p.opts.Denoise); err != nil {
		return nil, fmt.Errorf("prepare audio: %w", err)
	}
	defer os.Remove(wavPath)
	report(StagePreparing, 10)

	probe, err := p.ffmpeg.Probe(ctx, wavPath)
	if err != nil {
		return nil, fmt.Errorf("probe prepared audio: %w", err)
	}
	duration := probe.Duration()
	if duration <= 0 {
		return nil, fmt.Errorf("prepared audio has no duration")
	}

	report(StageSegmenting, 12)
	var silences []media.Silence
	if p.opts.Segmenting.SplitOnSilence {
		silences, err = p.ffmpeg.DetectSilence(ctx, wavPath, silenceNoiseDB, silenceMinDur)
		if err != nil {
			// Segmentation is an optimization; fixed windows still work.
			p.logger.Warn("Silence detection failed, using fixed windows", zap.Error(err))
			silences = nil
		}
	}
	spans := PlanSegments(duration, silences, p.opts.Segmenting)
	p.logger.Info("Planned transcription segments",
		zap.Int("segments", len(spans)),
		zap.Float64("duration", duration),
	)
	report(StageSegmenting, 20)

	segments := make([]TranscriptSegment, 0, len(spans))
	for i, span := range spans {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		segPath := filepath.Join(p.workDir, fmt.Sprintf("%s_seg%03d.wav", base, i))
		if err := p.ffmpeg.Cut(ctx, wavPath, segPath, span.Start, span.Duration()); err != nil {
			return nil, fmt.Errorf("cut segment %d: %w", i, err)
		}

		text, err := p.engines.Transcribe(ctx, segPath, p.opts.Language)
		os.Remove(segPath)
		if err != nil {
			return nil, fmt.Errorf("transcribe segment %d [%.2fs-%.2fs]: %w", i, span.Start, span.End, err)
		}

		text = strings.TrimSpace(text)
		if text != "" {
			segments = append(segments, TranscriptSegment{
				Index: len(segments),
				Start: span.Start,
				End:   span.End,
				Text:  text,
			})
		}

		report(StageTranscribing, 20+70*(i+1)/len(spans))
	}

	report(StageExporting, 92)
	transcript := &Transcript{
		Text:     joinSegments(segments),
		Language: p.opts.Language,
		Duration: duration,
		Segments: segments,
	}
	if err := transcript.Export(outBase); err != nil {
		return nil, err
	}
	report(StageExporting, 100)

	return transcript, nil
}

func joinSegments(segments []TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
