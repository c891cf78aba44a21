// Package hologram assembles the server: transport, event router, mode
// controller and the two perception pipelines.
package hologram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/teslashibe/go-hologram/internal/config"
	"github.com/teslashibe/go-hologram/pkg/audiofile"
	"github.com/teslashibe/go-hologram/pkg/filter"
	"github.com/teslashibe/go-hologram/pkg/hub"
	"github.com/teslashibe/go-hologram/pkg/mode"
	"github.com/teslashibe/go-hologram/pkg/protocol"
	"github.com/teslashibe/go-hologram/pkg/router"
	"github.com/teslashibe/go-hologram/pkg/task"
	"github.com/teslashibe/go-hologram/pkg/vision"
	"github.com/teslashibe/go-hologram/pkg/voice"
	"github.com/teslashibe/go-hologram/pkg/web"
)

// Task names for the long-lived background work.
const (
	HubTask     = "hub"
	JanitorTask = "audio_janitor"
)

// App owns every component and their lifecycle.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend Backend
	started time.Time

	tasks  *task.Manager
	router *router.Router
	hub    *hub.Hub
	store  *audiofile.Store
	filter *filter.WordFilter
	voice  *voice.Controller
	vision *vision.Component
	mode   *mode.Controller
	server *web.Server

	closers []io.Closer

	addrMu sync.Mutex
	addr   net.Addr
	ready  chan struct{}
}

// Option customizes an App.
type Option func(*App)

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithBackend replaces some or all device and cloud providers. Nil fields
// are built from the configuration.
func WithBackend(b Backend) Option {
	return func(a *App) { a.backend = b }
}

// New validates cfg and returns an uninitialized App.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("hologram: config required")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("hologram: invalid config: %w", errors.Join(errs...))
	}

	a := &App{
		cfg:   cfg,
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Init builds every component. Call it once before Run.
func (a *App) Init(ctx context.Context) error {
	log := a.logger.With("component", "app")

	backend, closers, err := buildBackend(ctx, a.cfg, a.backend, a.logger)
	if err != nil {
		closeAll(closers, log)
		return err
	}
	a.backend = backend
	a.closers = closers

	a.store, err = audiofile.NewStore(a.cfg.Audio.Dir, a.cfg.PublicURL(), a.logger)
	if err != nil {
		return err
	}
	a.filter, err = filter.Load(a.cfg.Filter.WordsFile, a.logger)
	if err != nil {
		return fmt.Errorf("load blocked words: %w", err)
	}

	// Tasks outlive the Init ctx; Shutdown cancels them.
	a.tasks = task.NewManager(context.Background(), a.logger)
	a.router = router.New(a.logger)
	a.hub = hub.New(hub.Options{
		Name:      "clients",
		Logger:    a.logger,
		OnMessage: a.onMessage,
		OnJoin:    a.onJoin,
		OnLeave:   a.onLeave,
	})

	a.voice, err = voice.NewController(a.cfg.VoiceConfig(), voice.Deps{
		Tasks:       a.tasks,
		Source:      backend.Source,
		Transcriber: backend.Transcriber,
		Generator:   backend.Generator,
		Synthesizer: backend.Synthesizer,
		Filter:      a.filter,
		Store:       a.store,
		Broadcaster: a.hub,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	visionCfg := a.cfg.VisionConfig()
	strategy, err := vision.NewStrategy(visionCfg, backend.Differ, backend.Landmarker)
	if err != nil {
		return err
	}
	a.vision, err = vision.NewComponent(visionCfg, vision.Deps{
		Tasks:       a.tasks,
		Camera:      backend.Camera,
		Strategy:    strategy,
		Broadcaster: a.hub,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	a.mode = mode.NewController(a.vision, a.voice, a.hub, a.cfg.ModeConfig(), a.logger)
	a.mode.RegisterRoutes(a.router)

	a.server, err = web.NewServer(web.Options{
		Hub:    a.hub,
		Audio:  a.store,
		Status: a.Status,
		Logger: a.logger,
	})
	if err != nil {
		return err
	}

	log.Info("initialized",
		"strategy", visionCfg.Strategy,
		"grace", a.cfg.Mode.GracePeriod.Duration,
		"audio_dir", a.store.Dir(),
		"blocked_words", a.filter.Len(),
		"events", a.router.Events(),
	)
	return nil
}

// Run serves clients until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return errors.New("hologram: Run called before Init")
	}
	log := a.logger.With("component", "app")

	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a.addrMu.Lock()
	a.addr = ln.Addr()
	a.addrMu.Unlock()

	a.started = time.Now()
	a.tasks.Start(router.TaskName, a.router.Run)
	a.tasks.Start(HubTask, a.hub.Run)
	a.tasks.Start(JanitorTask, func(ctx context.Context) error {
		return a.store.RunJanitor(ctx, a.cfg.Audio.JanitorInterval.Duration, a.cfg.Audio.Retention.Duration)
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.Serve(ln) }()
	close(a.ready)

	log.Info("hologram ready", "addr", ln.Addr().String(), "public_url", a.cfg.PublicURL())

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}
}

// Ready is closed once Run is accepting connections.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the bound listen address, nil before Run.
func (a *App) Addr() net.Addr {
	a.addrMu.Lock()
	defer a.addrMu.Unlock()
	return a.addr
}

// Shutdown tears down the active mode, cancels all tasks and stops the
// server, in that order.
func (a *App) Shutdown(ctx context.Context) error {
	log := a.logger.With("component", "app")
	log.Info("shutting down")

	if a.mode != nil {
		a.mode.Shutdown(ctx)
	}
	if a.tasks != nil {
		a.tasks.CancelAll()
	}

	var err error
	if a.server != nil {
		if serr := a.server.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("server shutdown: %w", serr)
		}
	}
	closeAll(a.closers, log)
	a.closers = nil
	return err
}

// Status reports the current mode, pipelines and clients.
func (a *App) Status() web.Status {
	vm := a.voice.Metrics()
	vs := a.vision.Stats()

	var uptime time.Duration
	if !a.started.IsZero() {
		uptime = time.Since(a.started).Round(time.Second)
	}

	return web.Status{
		Mode:    a.mode.Current().String(),
		Clients: a.hub.ClientCount(),
		Tasks:   a.tasks.Names(),
		Voice: web.VoiceStatus{
			Active:   a.voice.Active(),
			State:    a.voice.State().String(),
			Turns:    vm.Turns,
			Replies:  vm.Replies,
			Refusals: vm.Refusals,
			Failures: vm.Failures,
			LastMs:   vm.LastTurn.Total.Milliseconds(),
		},
		Vision: web.VisionStatus{
			Active:   a.vision.Active(),
			Strategy: string(a.cfg.VisionConfig().Strategy),
			Frames:   vs.Frames,
			Motions:  vs.Motions,
			Waves:    vs.Waves,
		},
		Uptime: uptime.String(),
	}
}

// Mode returns the mode controller.
func (a *App) Mode() *mode.Controller {
	return a.mode
}

func (a *App) onMessage(data []byte) {
	msg, err := protocol.ParseInbound(data)
	if err != nil {
		a.logger.Warn("dropping client message", "component", "app", "error", err)
		return
	}
	if !a.router.Dispatch(msg.EventName(), msg.Payload()) {
		a.logger.Debug("no handler for event", "component", "app", "event", msg.EventName())
	}
}

func (a *App) onJoin(clients int) {
	a.router.Dispatch(router.EventInternalConnect, router.Payload{"clients": clients})
}

func (a *App) onLeave(clients int) {
	if clients == 0 {
		a.router.Dispatch(router.EventInternalDisconnect, router.Payload{})
	}
}

func closeAll(closers []io.Closer, log *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}
