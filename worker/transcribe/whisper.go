package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// WhisperCLI runs a whisper.cpp style binary. Contract: given a 16 kHz
// mono WAV it prints the transcript to stdout and nothing else.
type WhisperCLI struct {
	bin   string
	model string
}

func NewWhisperCLI(bin, model string) *WhisperCLI {
	return &WhisperCLI{bin: bin, model: model}
}

func (w *WhisperCLI) Name() string { return "whisper" }

func (w *WhisperCLI) Transcribe(ctx context.Context, wavPath, language string) (string, error) {
	if language == "" {
		language = "auto"
	}
	cmd := exec.CommandContext(ctx, w.bin,
		"-m", w.model,
		"-l", language,
		"--no-timestamps",
		"--no-prints",
		"-f", wavPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", errors.New("whisper produced no output")
	}
	return text, nil
}

// CommandEngine adapts any external command with the same stdout contract,
// used as the configured fallback engine. The tokens {input} and
// {language} in its arguments are substituted per segment.
type CommandEngine struct {
	name string
	bin  string
	args []string
}

func NewCommandEngine(name, bin string, args ...string) *CommandEngine {
	return &CommandEngine{name: name, bin: bin, args: args}
}

func (c *CommandEngine) Name() string { return c.name }

func (c *CommandEngine) Transcribe(ctx context.Context, wavPath, language string) (string, error) {
	args := make([]string, 0, len(c.args))
	for _, arg := range c.args {
		arg = strings.ReplaceAll(arg, "{input}", wavPath)
		arg = strings.ReplaceAll(arg, "{language}", language)
		args = append(args, arg)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", c.name, err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", fmt.Errorf("%s produced no output", c.name)
	}
	return text, nil
}
