package vision

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Strategy turns frames into events. Implementations are used by one loop
// at a time and need no locking.
type Strategy interface {
	Name() StrategyName
	Process(ctx context.Context, f Frame, now time.Duration) ([]Event, error)
	Reset()
}

// NewStrategy builds the variant named by cfg.Strategy. Motion variants
// require d and landmark variants require lm.
func NewStrategy(cfg Config, d Differ, lm Landmarker) (Strategy, error) {
	name, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	if name.NeedsDiffer() && d == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDiffer, name)
	}
	if name.NeedsLandmarks() && lm == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoLandmarker, name)
	}

	switch name {
	case StrategyWave:
		return &waveStrategy{tracker: NewWaveTracker(cfg), lm: lm}, nil
	case StrategyBoth:
		return &bothStrategy{
			motion: &motionStrategy{trigger: NewMotionTrigger(cfg, d)},
			wave:   &waveStrategy{tracker: NewWaveTracker(cfg), lm: lm},
		}, nil
	default:
		return &motionStrategy{trigger: NewMotionTrigger(cfg, d)}, nil
	}
}

type motionStrategy struct {
	trigger *MotionTrigger
}

func (s *motionStrategy) Name() StrategyName { return StrategyMotion }

func (s *motionStrategy) Process(_ context.Context, f Frame, now time.Duration) ([]Event, error) {
	_, fired, err := s.trigger.Update(f, now)
	if err != nil {
		return nil, err
	}
	if fired {
		return []Event{EventMotion}, nil
	}
	return nil, nil
}

func (s *motionStrategy) Reset() { s.trigger.Reset() }

type waveStrategy struct {
	tracker *WaveTracker
	lm      Landmarker
}

func (s *waveStrategy) Name() StrategyName { return StrategyWave }

func (s *waveStrategy) Process(ctx context.Context, f Frame, now time.Duration) ([]Event, error) {
	hands, err := s.lm.Detect(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}
	if s.tracker.Update(hands, now) {
		return []Event{EventWave}, nil
	}
	return nil, nil
}

func (s *waveStrategy) Reset() { s.tracker.Reset() }

// bothStrategy runs motion first. Either detector failing still reports the
// other's events, and both failures are returned.
type bothStrategy struct {
	motion *motionStrategy
	wave   *waveStrategy
}

func (s *bothStrategy) Name() StrategyName { return StrategyBoth }

func (s *bothStrategy) Process(ctx context.Context, f Frame, now time.Duration) ([]Event, error) {
	events, motionErr := s.motion.Process(ctx, f, now)
	waves, waveErr := s.wave.Process(ctx, f, now)
	return append(events, waves...), errors.Join(motionErr, waveErr)
}

func (s *bothStrategy) Reset() {
	s.motion.Reset()
	s.wave.Reset()
}
