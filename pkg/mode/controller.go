package mode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-hologram/pkg/protocol"
	"github.com/teslashibe/go-hologram/pkg/router"
)

// Pipeline is a perception pipeline owned by the controller.
//
// Start launches the pipeline's background task and returns without waiting
// for it; the ctx only bounds the call itself. Stop cancels the task and
// returns once it has exited and released its device.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Active() bool
}

// Broadcaster sends a message to every connected client.
type Broadcaster interface {
	BroadcastJSON(v any) error
}

// Controller serializes mode transitions and owns the disconnect grace timer.
type Controller struct {
	vision Pipeline
	voice  Pipeline
	bc     Broadcaster
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	current  Mode
	grace    *time.Timer
	graceGen uint64
}

// NewController creates a controller in mode None.
func NewController(vision, voice Pipeline, bc Broadcaster, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GracePeriod < 0 {
		cfg.GracePeriod = 0
	}
	return &Controller{
		vision:  vision,
		voice:   voice,
		bc:      bc,
		cfg:     cfg,
		logger:  logger.With("component", "mode"),
		current: None,
	}
}

// Current returns the active mode.
func (c *Controller) Current() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Handle switches to the requested mode. Requesting the current mode is
// idempotent; for VOICE it restarts the voice task only if it is not running.
func (c *Controller) Handle(ctx context.Context, requested Mode) error {
	if requested != Vision && requested != Voice {
		return fmt.Errorf("%w: %q", ErrUnknownMode, requested)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelGraceLocked() {
		c.logger.Info("client returned, pending teardown cancelled")
	}

	if requested == c.current {
		if requested == Voice && !c.voice.Active() {
			c.logger.Info("re-asserting voice pipeline")
			return c.startLocked(ctx, Voice)
		}
		c.logger.Debug("mode unchanged", "mode", requested)
		return nil
	}

	c.logger.Info("mode switch", "from", c.current, "to", requested)
	c.stopLocked(ctx, c.current)
	c.current = requested
	return c.startLocked(ctx, requested)
}

// HandleDisconnect arms the grace timer after the last client left. If no
// client returns before it fires, the active pipeline is stopped and the
// mode returns to None.
func (c *Controller) HandleDisconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelGraceLocked()
	c.graceGen++

	if c.cfg.GracePeriod == 0 {
		c.logger.Info("all clients disconnected, tearing down")
		c.teardownLocked(ctx)
		return
	}

	gen := c.graceGen
	c.grace = time.AfterFunc(c.cfg.GracePeriod, func() { c.expire(gen) })
	c.logger.Info("all clients disconnected, teardown scheduled", "grace", c.cfg.GracePeriod)
}

// HandleConnect cancels a pending grace teardown.
func (c *Controller) HandleConnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelGraceLocked() {
		c.logger.Info("client reconnected, pending teardown cancelled")
	}
}

// VoiceControl pauses or resumes the voice loop without changing mode.
// "start" is only honored while in VOICE mode.
func (c *Controller) VoiceControl(ctx context.Context, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch action {
	case "start":
		if c.current != Voice {
			c.logger.Warn("voice start ignored outside VOICE mode", "mode", c.current)
			return nil
		}
		if c.voice.Active() {
			return nil
		}
		return c.startLocked(ctx, Voice)
	case "stop":
		if !c.voice.Active() {
			return nil
		}
		c.logger.Info("voice pipeline paused")
		return c.voice.Stop(ctx)
	default:
		return fmt.Errorf("mode: unknown voice control action %q", action)
	}
}

// Shutdown cancels any grace timer and stops the active pipeline.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelGraceLocked()
	c.graceGen++
	c.teardownLocked(ctx)
}

// RegisterRoutes installs the controller's event handlers.
func (c *Controller) RegisterRoutes(r *router.Router) {
	r.RegisterFunc(router.EventMode, func(ctx context.Context, p router.Payload) error {
		value, _ := p.String("value")
		m, err := ParseMode(value)
		if err != nil {
			return err
		}
		return c.Handle(ctx, m)
	})
	r.RegisterFunc(router.EventInternalDisconnect, func(ctx context.Context, _ router.Payload) error {
		c.HandleDisconnect(ctx)
		return nil
	})
	r.RegisterFunc(router.EventInternalConnect, func(ctx context.Context, _ router.Payload) error {
		c.HandleConnect(ctx)
		return nil
	})
	r.RegisterFunc(router.EventVoiceStart, func(ctx context.Context, _ router.Payload) error {
		return c.VoiceControl(ctx, "start")
	})
	r.RegisterFunc(router.EventVoiceStop, func(ctx context.Context, _ router.Payload) error {
		return c.VoiceControl(ctx, "stop")
	})
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A reconnect or newer disconnect superseded this timer.
	if gen != c.graceGen || c.grace == nil {
		return
	}
	c.grace = nil
	c.logger.Info("grace period elapsed, tearing down", "mode", c.current)
	c.teardownLocked(context.Background())
}

// cancelGraceLocked reports whether a pending timer was cancelled.
func (c *Controller) cancelGraceLocked() bool {
	if c.grace == nil {
		return false
	}
	c.grace.Stop()
	c.grace = nil
	c.graceGen++
	return true
}

func (c *Controller) teardownLocked(ctx context.Context) {
	c.stopLocked(ctx, c.current)
	c.current = None
}

func (c *Controller) stopLocked(ctx context.Context, m Mode) {
	p := c.pipeline(m)
	if p == nil {
		return
	}
	if err := p.Stop(ctx); err != nil {
		c.logger.Error("failed to stop pipeline", "mode", m, "error", err)
	}
}

func (c *Controller) startLocked(ctx context.Context, m Mode) error {
	p := c.pipeline(m)
	if p == nil {
		return nil
	}
	if err := p.Start(ctx); err != nil {
		c.logger.Error("failed to start pipeline", "mode", m, "error", err)
		c.reportError(fmt.Sprintf("failed to start %s: %v", m, err))
		return err
	}
	return nil
}

func (c *Controller) pipeline(m Mode) Pipeline {
	switch m {
	case Vision:
		return c.vision
	case Voice:
		return c.voice
	default:
		return nil
	}
}

func (c *Controller) reportError(message string) {
	if c.bc == nil {
		return
	}
	if err := c.bc.BroadcastJSON(protocol.NewError(message)); err != nil {
		c.logger.Warn("failed to broadcast error", "error", err)
	}
}
