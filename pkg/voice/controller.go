package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teslashibe/go-hologram/pkg/audioio"
	"github.com/teslashibe/go-hologram/pkg/filter"
	"github.com/teslashibe/go-hologram/pkg/inference"
	"github.com/teslashibe/go-hologram/pkg/protocol"
	"github.com/teslashibe/go-hologram/pkg/stt"
	"github.com/teslashibe/go-hologram/pkg/task"
	"github.com/teslashibe/go-hologram/pkg/tts"
)

// TaskName is the task the voice loop runs under.
const TaskName = "voice_pipeline"

const scopeName = "github.com/teslashibe/go-hologram/pkg/voice"

var tracer = otel.Tracer(scopeName)

// Runner runs named background tasks. *task.Manager satisfies it.
type Runner interface {
	Start(name string, work task.Work)
	Cancel(name string)
	Running(name string) bool
}

// Broadcaster sends a message to every connected client.
type Broadcaster interface {
	BroadcastJSON(v any) error
}

// AudioStore keeps recordings and synthesized replies. *audiofile.Store
// satisfies it.
type AudioStore interface {
	SaveWAV(samples []int16, sampleRate, channels int) (string, error)
	Save(data []byte, ext string) (string, error)
	Path(name string) (string, error)
	URL(name string) string
	Remove(name string) error
}

// Deps are the controller's collaborators. All are required.
type Deps struct {
	Tasks       Runner
	Source      audioio.Source
	Transcriber stt.Transcriber
	Generator   inference.Generator
	Synthesizer tts.Provider
	Filter      *filter.WordFilter
	Store       AudioStore
	Broadcaster Broadcaster
	Logger      *slog.Logger
}

// Controller owns the voice loop.
type Controller struct {
	cfg    Config
	deps   Deps
	limits Limits
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	firstTurn bool

	metrics metricsCollector
}

// NewController validates cfg and deps and returns an idle controller.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Tasks == nil:
		return nil, fmt.Errorf("%w: tasks", ErrMissingDependency)
	case deps.Source == nil:
		return nil, fmt.Errorf("%w: audio source", ErrMissingDependency)
	case deps.Transcriber == nil:
		return nil, fmt.Errorf("%w: transcriber", ErrMissingDependency)
	case deps.Generator == nil:
		return nil, fmt.Errorf("%w: generator", ErrMissingDependency)
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("%w: synthesizer", ErrMissingDependency)
	case deps.Filter == nil:
		return nil, fmt.Errorf("%w: word filter", ErrMissingDependency)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: audio store", ErrMissingDependency)
	case deps.Broadcaster == nil:
		return nil, fmt.Errorf("%w: broadcaster", ErrMissingDependency)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		cfg:    cfg,
		deps:   deps,
		limits: cfg.Limits(),
		logger: logger.With("component", "voice"),
		state:  StateIdle,
	}, nil
}

// Start launches the voice loop. The next successful turn is greeted and
// the generator forgets the previous session.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.firstTurn = true
	c.mu.Unlock()

	if f, ok := c.deps.Generator.(inference.Forgetter); ok {
		f.Forget()
	}

	c.deps.Tasks.Start(TaskName, c.run)
	return nil
}

// Stop cancels the voice loop and waits for it to release the microphone.
func (c *Controller) Stop(ctx context.Context) error {
	c.deps.Tasks.Cancel(TaskName)
	return nil
}

// Active reports whether the voice loop is running.
func (c *Controller) Active() bool {
	return c.deps.Tasks.Running(TaskName)
}

// State returns the loop's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Metrics returns a snapshot of the loop's counters.
func (c *Controller) Metrics() Metrics {
	return c.metrics.snapshot()
}

func (c *Controller) run(ctx context.Context) error {
	c.logger.Info("voice loop started")
	defer func() {
		c.setState(StateIdle)
		c.logger.Info("voice loop stopped")
	}()

	var deviceDown bool
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.turn(ctx)
		switch {
		case err == nil:
			if deviceDown {
				c.logger.Info("microphone recovered")
				deviceDown = false
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, audioio.ErrDeviceUnavailable):
			if !deviceDown {
				c.logger.Error("microphone unavailable", "error", err)
				c.broadcast(protocol.NewError("microphone unavailable"))
				deviceDown = true
			}
			c.setState(StateIdle)
			if !sleep(ctx, c.cfg.DeviceRetryDelay) {
				return ctx.Err()
			}
		default:
			c.logger.Warn("voice turn failed", "error", err)
			c.setState(StateIdle)
			if !sleep(ctx, c.cfg.RetryDelay) {
				return ctx.Err()
			}
		}
	}
}

// turn runs one listen → reply cycle. Errors returned here are device
// errors; everything else degrades to an idle turn.
func (c *Controller) turn(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "voice turn")
	defer span.End()

	c.metrics.update(func(m *Metrics) { m.Turns++ })
	c.setState(StateListening)

	listenStart := time.Now()
	rec, err := c.listen(ctx)
	if errors.Is(err, ErrNoSpeech) {
		span.SetAttributes(attribute.Bool("voice.heard", false))
		c.metrics.update(func(m *Metrics) { m.Silent++ })
		if !sleep(ctx, c.cfg.RetryDelay) {
			return ctx.Err()
		}
		c.setState(StateIdle)
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	var timing TurnTiming
	timing.Listen = time.Since(listenStart)
	speechEnd := time.Now()
	span.SetAttributes(
		attribute.Bool("voice.heard", true),
		attribute.Int("voice.frames", rec.Frames),
		attribute.Float64("voice.peak_rms", rec.Peak),
	)

	c.setState(StateWaiting)

	stageStart := time.Now()
	text, err := c.transcribe(ctx, rec)
	timing.Transcribe = time.Since(stageStart)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Info("no transcript", "error", err)
		c.metrics.update(func(m *Metrics) { m.Failures++ })
		return c.finishTurn(ctx)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logger.Info("user said", "text", text)
	c.broadcast(protocol.NewTranscribe(text))

	stageStart = time.Now()
	reply, generated := c.reply(ctx, text)
	if generated {
		timing.Generate = time.Since(stageStart)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	stageStart = time.Now()
	audio, err := c.synthesize(ctx, reply)
	timing.Synthesize = time.Since(stageStart)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("speech synthesis failed", "error", err)
		c.metrics.update(func(m *Metrics) { m.Failures++ })
		return c.finishTurn(ctx)
	}

	name, err := c.deps.Store.Save(audio.Audio, audio.FileExt())
	if err != nil {
		c.logger.Error("failed to store reply audio", "error", err)
		c.metrics.update(func(m *Metrics) { m.Failures++ })
		return c.finishTurn(ctx)
	}

	wait := c.cfg.SpeakingTime(len(strings.Fields(reply)))
	duration := audio.Duration
	if duration <= 0 {
		duration = wait
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.broadcast(protocol.NewSpeak(c.deps.Store.URL(name), duration.Seconds(), reply))
	timing.Total = time.Since(speechEnd)
	c.metrics.update(func(m *Metrics) {
		m.Replies++
		m.LastTurn = timing
		m.LastSpoken = time.Now()
	})
	c.logger.Info("speaking",
		"text", reply,
		"provider", audio.Provider,
		"duration", duration,
		"wait", wait,
		"latency_ms", timing.Total.Milliseconds(),
	)

	if !sleep(ctx, wait) {
		return ctx.Err()
	}
	return c.finishTurn(ctx)
}

func (c *Controller) finishTurn(ctx context.Context) error {
	c.setState(StateIdle)
	if !sleep(ctx, c.cfg.RetryDelay) {
		return ctx.Err()
	}
	return nil
}

// listen opens the microphone for one session and always closes it again.
func (c *Controller) listen(ctx context.Context) (*Recording, error) {
	src := c.deps.Source
	if err := src.Open(ctx); err != nil {
		if errors.Is(err, audioio.ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", audioio.ErrDeviceUnavailable, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			c.logger.Warn("failed to close microphone", "error", err)
		}
	}()

	return Record(ctx, src, c.limits)
}

func (c *Controller) transcribe(ctx context.Context, rec *Recording) (string, error) {
	name, err := c.deps.Store.SaveWAV(rec.Samples, rec.SampleRate, rec.Channels)
	if err != nil {
		return "", fmt.Errorf("save recording: %w", err)
	}
	defer func() {
		if err := c.deps.Store.Remove(name); err != nil {
			c.logger.Warn("failed to remove recording", "file", name, "error", err)
		}
	}()

	path, err := c.deps.Store.Path(name)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	text, err := c.deps.Transcriber.Transcribe(ctx, f, name)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", stt.ErrNoTranscript
	}
	return text, nil
}

// reply picks what to say. generated reports whether the Generator ran.
func (c *Controller) reply(ctx context.Context, text string) (reply string, generated bool) {
	c.mu.Lock()
	first := c.firstTurn
	c.firstTurn = false
	c.mu.Unlock()

	if first {
		c.logger.Info("first turn, greeting")
		return c.cfg.Greeting, false
	}

	if c.deps.Filter.ContainsProfanity(text) {
		c.logger.Info("blocked word in transcript, refusing")
		c.metrics.update(func(m *Metrics) { m.Refusals++ })
		return c.cfg.Refusal, false
	}

	answer, err := c.deps.Generator.Generate(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("reply generation failed", "error", err)
		}
		return c.cfg.Apology, true
	}

	censored := c.deps.Filter.Censor(answer)
	if censored != answer {
		c.logger.Info("generated reply censored")
	}
	return censored, true
}

func (c *Controller) synthesize(ctx context.Context, text string) (*tts.AudioResult, error) {
	ctx, span := tracer.Start(ctx, "synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.String("tts.provider", c.deps.Synthesizer.Name()),
		attribute.Int("tts.chars", len(text)),
	)

	res, err := c.deps.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("tts.served_by", res.Provider))
	return res, nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.broadcast(protocol.NewState(string(s)))
}

func (c *Controller) broadcast(msg any) {
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
