package voice

import (
	"context"
	"time"

	"github.com/teslashibe/go-hologram/pkg/audioio"
)

// Limits are the recording thresholds in chunk units.
type Limits struct {
	SilenceThreshold   float64
	MinEnergyThreshold float64
	SilenceChunks      int // trailing silent chunks tolerated before stopping
	MaxWaitChunks      int // chunks to wait for speech to start
	MaxChunks          int // total chunks per session
	MinFrames          int // minimum captured chunks for a usable recording
}

// Recording is a captured utterance.
type Recording struct {
	Samples    []int16
	SampleRate int
	Channels   int
	Frames     int     // captured chunks
	Peak       float64 // highest chunk RMS
}

// Duration returns the recording length.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate <= 0 || r.Channels <= 0 {
		return 0
	}
	return time.Duration(len(r.Samples)/r.Channels) * time.Second / time.Duration(r.SampleRate)
}

// Session is one listening attempt. Feed it chunks in order until it reports
// done, then collect the result with Recording.
//
// Before speech starts, chunks are dropped; the session aborts once it has
// seen more than MaxWaitChunks without a chunk above MinEnergyThreshold. After
// speech starts, every chunk is kept and the session ends when more than
// SilenceChunks consecutive chunks fall below SilenceThreshold. MaxChunks caps
// the whole session either way.
type Session struct {
	limits Limits

	samples []int16
	frames  int
	started bool
	peak    float64
	silent  int
	ticks   int
	done    bool
	aborted bool
}

// NewSession starts a listening attempt.
func NewSession(limits Limits) *Session {
	return &Session{limits: limits}
}

// Feed processes one chunk and reports whether the session is finished.
// Chunks fed after that are ignored.
func (s *Session) Feed(samples []int16) bool {
	if s.done {
		return true
	}
	s.ticks++
	rms := audioio.RMS(samples)

	if !s.started {
		if rms > s.limits.MinEnergyThreshold {
			s.started = true
		} else if s.ticks > s.limits.MaxWaitChunks {
			s.done, s.aborted = true, true
			return true
		}
	}

	if s.started {
		s.samples = append(s.samples, samples...)
		s.frames++
		if rms > s.peak {
			s.peak = rms
		}
		if rms < s.limits.SilenceThreshold {
			s.silent++
		} else {
			s.silent = 0
		}
		if s.silent > s.limits.SilenceChunks {
			s.done = true
			return true
		}
	}

	if s.ticks >= s.limits.MaxChunks {
		s.done = true
	}
	return s.done
}

// Started reports whether speech has been detected.
func (s *Session) Started() bool {
	return s.started
}

// Recording returns the captured utterance, or false when nothing usable was
// heard: no speech before the wait limit, peak energy never above
// MinEnergyThreshold, or fewer than MinFrames chunks.
func (s *Session) Recording(sampleRate, channels int) (*Recording, bool) {
	if s.aborted || !s.started {
		return nil, false
	}
	if s.peak <= s.limits.MinEnergyThreshold || s.frames < s.limits.MinFrames {
		return nil, false
	}
	return &Recording{
		Samples:    s.samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Frames:     s.frames,
		Peak:       s.peak,
	}, true
}

// Record reads chunks from an open source through a Session. It returns
// ErrNoSpeech when nothing usable was heard.
func Record(ctx context.Context, src audioio.Source, limits Limits) (*Recording, error) {
	sess := NewSession(limits)
	cfg := src.Config()

	for {
		chunk, err := src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if sess.Feed(chunk.Samples) {
			break
		}
	}

	rec, ok := sess.Recording(cfg.SampleRate, cfg.Channels)
	if !ok {
		return nil, ErrNoSpeech
	}
	return rec, nil
}
