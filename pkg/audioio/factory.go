package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource returns the source for cfg.Backend. Opening the device is left
// to the caller.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audioio: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var src Source
	switch cfg.Backend {
	case BackendAuto, "", BackendPortAudio:
		src = NewPortAudioSource(cfg, logger)
	case BackendMock:
		src = NewMockSource(cfg, logger)
	default:
		return nil, fmt.Errorf("audioio: unsupported backend %q", cfg.Backend)
	}

	logger.Debug("audio source ready",
		"component", "audioio",
		"backend", src.Name(),
		"sample_rate", cfg.SampleRate,
		"chunk", cfg.ChunkDuration(),
	)
	return src, nil
}
