// Package audiofile keeps the short-lived audio files the voice pipeline
// produces: microphone recordings sent for transcription and synthesized
// replies served to clients under /audio/.
package audiofile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// ErrInvalidName is returned for names that are not plain .mp3/.wav files
// inside the store directory.
var ErrInvalidName = errors.New("audiofile: invalid name")

// Store writes audio files to a single directory with random names.
type Store struct {
	dir       string
	publicURL string
	logger    *slog.Logger
}

// NewStore creates dir if needed. publicURL is the externally reachable
// server address used to build file URLs.
func NewStore(dir, publicURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audiofile: create dir: %w", err)
	}
	return &Store{
		dir:       dir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		logger:    logger.With("component", "audiofile"),
	}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under a new name with the given extension (".mp3" or ".wav").
func (s *Store) Save(data []byte, ext string) (string, error) {
	if !allowedExt(ext) {
		return "", fmt.Errorf("%w: extension %q", ErrInvalidName, ext)
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("audiofile: write %s: %w", name, err)
	}
	s.logger.Debug("saved audio", "name", name, "bytes", len(data))
	return name, nil
}

// SaveWAV encodes mono or interleaved PCM16 samples as a WAV file.
func (s *Store) SaveWAV(samples []int16, sampleRate, channels int) (string, error) {
	if channels <= 0 {
		channels = 1
	}
	name := uuid.NewString() + ".wav"
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("audiofile: create %s: %w", name, err)
	}

	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(v)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	// Audio format 1 is uncompressed PCM.
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("audiofile: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("audiofile: finalize wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("audiofile: close %s: %w", name, err)
	}

	s.logger.Debug("saved recording", "name", name, "samples", len(samples))
	return name, nil
}

// Path resolves a stored file name to its path on disk.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !allowedExt(filepath.Ext(name)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// URL returns the client-facing URL for a stored file.
func (s *Store) URL(name string) string {
	return s.publicURL + "/audio/" + name
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Prune deletes audio files last modified more than olderThan ago and returns
// how many were removed.
func (s *Store) Prune(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("audiofile: read dir: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !allowedExt(filepath.Ext(e.Name())) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Warn("failed to prune audio file", "name", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// RunJanitor prunes files older than retention every interval until ctx is
// cancelled.
func (s *Store) RunJanitor(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.Prune(retention)
			if err != nil {
				s.logger.Warn("audio prune failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("pruned audio files", "count", n)
			}
		}
	}
}

func allowedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".wav":
		return true
	}
	return false
}
