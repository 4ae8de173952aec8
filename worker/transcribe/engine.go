package transcribe

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrNoEngines = errors.New("no transcription engines configured")

// Engine turns one prepared WAV segment into text.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, wavPath, language string) (string, error)
}

// EngineSet dispatches to engines in order and takes the first success.
// A failing primary engine is logged and the next one gets the segment.
type EngineSet struct {
	engines []Engine
	logger  *zap.Logger
}

func NewEngineSet(logger *zap.Logger, engines ...Engine) *EngineSet {
	return &EngineSet{engines: engines, logger: logger}
}

func (s *EngineSet) Transcribe(ctx context.Context, wavPath, language string) (string, error) {
	if len(s.engines) == 0 {
		return "", ErrNoEngines
	}

	var errs []error
	for _, engine := range s.engines {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		text, err := engine.Transcribe(ctx, wavPath, language)
		if err == nil {
			return text, nil
		}
		s.logger.Warn("Engine failed, trying next",
			zap.String("engine", engine.Name()),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", engine.Name(), err))
	}
	return "", fmt.Errorf("all engines failed: %w", errors.Join(errs...))
}
