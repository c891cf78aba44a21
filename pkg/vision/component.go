package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-hologram/pkg/protocol"
	"github.com/teslashibe/go-hologram/pkg/task"
)

// TaskName is the task the camera loop runs under.
const TaskName = "vision_loop"

// Runner runs named background tasks. *task.Manager satisfies it.
type Runner interface {
	Start(name string, work task.Work)
	Cancel(name string)
	Running(name string) bool
}

// Deps are the component's collaborators. All are required.
type Deps struct {
	Tasks       Runner
	Camera      Camera
	Strategy    Strategy
	Broadcaster Broadcaster
	Logger      *slog.Logger
}

// Stats counts what the loop has seen since the process started.
type Stats struct {
	Runs      int
	Frames    int
	Motions   int
	Waves     int
	Errors    int // frames the strategy failed on
	LastEvent time.Time
}

// Component owns the camera loop.
type Component struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewComponent validates cfg and deps and returns a stopped component.
func NewComponent(cfg Config, deps Deps) (*Component, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Tasks == nil || deps.Camera == nil || deps.Strategy == nil || deps.Broadcaster == nil {
		return nil, errors.New("vision: tasks, camera, strategy and broadcaster are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Component{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "vision", "strategy", deps.Strategy.Name()),
	}, nil
}

// Start launches the camera loop. Starting a running loop only warns.
func (c *Component) Start(ctx context.Context) error {
	if c.Active() {
		c.logger.Warn("vision loop already running")
		return nil
	}
	c.deps.Strategy.Reset()
	c.deps.Tasks.Start(TaskName, c.run)
	return nil
}

// Stop cancels the loop, waits for it to release the camera and clears the
// detector state.
func (c *Component) Stop(ctx context.Context) error {
	c.deps.Tasks.Cancel(TaskName)
	c.deps.Strategy.Reset()
	return nil
}

// Active reports whether the camera loop is running.
func (c *Component) Active() bool {
	return c.deps.Tasks.Running(TaskName)
}

// Stats returns a snapshot of the loop counters.
func (c *Component) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Component) run(ctx context.Context) error {
	cam := c.deps.Camera
	if err := cam.Open(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("cannot open camera", "error", err)
		c.broadcast(protocol.NewError("camera unavailable"))
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			c.logger.Warn("failed to release camera", "error", err)
		}
		c.logger.Info("camera released")
	}()

	c.update(func(s *Stats) { s.Runs++ })
	c.logger.Info("vision loop started")
	start := time.Now()

	for {
		frame, err := cam.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read frame", "error", err)
			if errors.Is(err, ErrCaptureFailure) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrCaptureFailure, err)
		}

		events, err := c.deps.Strategy.Process(ctx, frame, time.Since(start))
		if err != nil && ctx.Err() == nil {
			c.logger.Warn("frame processing failed", "error", err)
		}
		c.update(func(s *Stats) {
			s.Frames++
			if err != nil {
				s.Errors++
			}
		})

		for _, ev := range events {
			c.logger.Info("event detected", "event", ev)
			c.broadcast(protocol.NewAction(string(ev)))
			c.update(func(s *Stats) {
				switch ev {
				case EventMotion:
					s.Motions++
				case EventWave:
					s.Waves++
				}
				s.LastEvent = time.Now()
			})
		}

		if !sleep(ctx, c.cfg.FrameInterval) {
			return ctx.Err()
		}
	}
}

func (c *Component) update(fn func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
}

func (c *Component) broadcast(msg any) {
	if err := c.deps.Broadcaster.BroadcastJSON(msg); err != nil {
		c.logger.Warn("broadcast failed", "error", err)
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
