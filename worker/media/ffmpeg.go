package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var ErrUnsupportedAudioFormat = errors.New("unsupported audio format")

// FFmpeg shells out to ffmpeg/ffprobe binaries. All media decoding stays in
// the external processes; this wrapper only builds argument lists and
// parses their output.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

func New(ffmpegPath, ffprobePath string, logger *zap.Logger) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

type ProbeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

func (p *ProbeResult) Duration() float64 {
	d, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}

func (p *ProbeResult) HasStream(codecType string) bool {
	for _, s := range p.Streams {
		if s.CodecType == codecType {
			return true
		}
	}
	return false
}

func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (*ProbeResult, error) {
	var probe ProbeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &probe, nil
}

// TranscodeWAV produces the mono 16 kHz normalized WAV every transcription
// engine expects. The optional high-pass filter knocks out low rumble
// before loudness normalization.
func (f *FFmpeg) TranscodeWAV(ctx context.Context, inputPath, outputPath string, denoise bool) error {
	filter := "loudnorm"
	if denoise {
		filter = "highpass=f=200," + filter
	}
	args := []string{
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-af", filter,
		"-c:a", "pcm_s16le",
		"-y", outputPath,
	}
	_, err := f.run(ctx, args)
	return err
}

func (f *FFmpeg) ExtractAudio(ctx context.Context, inputPath, outputPath, format string) error {
	args := []string{"-i", inputPath, "-vn"}
	switch format {
	case "mp3":
		args = append(args, "-c:a", "libmp3lame", "-q:a", "2")
	case "wav":
		args = append(args, "-c:a", "pcm_s16le")
	case "ogg":
		args = append(args, "-c:a", "libvorbis")
	case "flac":
		args = append(args, "-c:a", "flac")
	case "aac", "m4a":
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAudioFormat, format)
	}
	args = append(args, "-y", outputPath)
	_, err := f.run(ctx, args)
	return err
}

type Silence struct {
	Start float64
	End   float64
}

// DetectSilence runs the input through the silencedetect filter and parses
// the intervals it reports on stderr.
func (f *FFmpeg) DetectSilence(ctx context.Context, inputPath string, noiseDB, minSilence float64) ([]Silence, error) {
	args := []string{
		"-i", inputPath,
		"-af", fmt.Sprintf("silencedetect=noise=%.0fdB:d=%.2f", noiseDB, minSilence),
		"-f", "null", "-",
	}
	stderr, err := f.run(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseSilences(stderr), nil
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?\d+(?:\.\d+)?)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?\d+(?:\.\d+)?)`)
)

// parseSilences pairs silence_start/silence_end lines from silencedetect
// output. A trailing silence_start with no end runs to the end of input and
// is left open (End = -1) for the caller to clamp.
func parseSilences(stderr string) []Silence {
	var silences []Silence
	var open *Silence

	for _, line := range strings.Split(stderr, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			start, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if start < 0 {
				start = 0
			}
			open = &Silence{Start: start, End: -1}
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && open != nil {
			end, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			open.End = end
			silences = append(silences, *open)
			open = nil
		}
	}
	if open != nil {
		silences = append(silences, *open)
	}
	return silences
}

// Cut copies a time range out of a file without re-encoding.
func (f *FFmpeg) Cut(ctx context.Context, inputPath, outputPath string, start, duration float64) error {
	args := []string{
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", inputPath,
		"-c", "copy",
		"-y", outputPath,
	}
	_, err := f.run(ctx, args)
	return err
}

type GIFOptions struct {
	FPS      int
	Width    int
	Start    float64
	Duration float64
}

// GIF renders an animated GIF with the two-pass palette approach:
// palettegen first, then paletteuse, which avoids the default dithered
// 256-color banding.
func (f *FFmpeg) GIF(ctx context.Context, inputPath, outputPath string, opts GIFOptions) error {
	if opts.FPS <= 0 {
		opts.FPS = 10
	}
	if opts.Width <= 0 {
		opts.Width = 480
	}

	scale := fmt.Sprintf("fps=%d,scale=%d:-1:flags=lanczos", opts.FPS, opts.Width)
	palettePath := outputPath + ".palette.png"
	defer os.Remove(palettePath)

	rangeArgs := func() []string {
		var args []string
		if opts.Start > 0 {
			args = append(args, "-ss", formatSeconds(opts.Start))
		}
		if opts.Duration > 0 {
			args = append(args, "-t", formatSeconds(opts.Duration))
		}
		return args
	}

	paletteArgs := append(rangeArgs(),
		"-i", inputPath,
		"-vf", scale+",palettegen",
		"-y", palettePath,
	)
	if _, err := f.run(ctx, paletteArgs); err != nil {
		return fmt.Errorf("palette pass: %w", err)
	}

	renderArgs := append(rangeArgs(),
		"-i", inputPath,
		"-i", palettePath,
		"-lavfi", scale+"[x];[x][1:v]paletteuse",
		"-y", outputPath,
	)
	if _, err := f.run(ctx, renderArgs); err != nil {
		return fmt.Errorf("render pass: %w", err)
	}
	return nil
}

func (f *FFmpeg) run(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.logger.Debug("Running ffmpeg", zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return stderr.String(), fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), 400))
	}
	return stderr.String(), nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
