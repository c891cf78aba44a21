// Package router maps inbound event names to handlers.
//
// Dispatch never blocks on a handler. Events are queued and a single worker
// (Run) invokes their handlers one at a time in arrival order, so a later
// mode or presence event always observes the effect of an earlier one. A
// failing or panicking handler is logged without affecting the caller or
// the events behind it.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// TaskName is the task manager name for the dispatch worker.
const TaskName = "event_router"

// Event names understood by the orchestration layer.
const (
	EventMode               = "mode"
	EventVoiceStart         = "voice_control:start"
	EventVoiceStop          = "voice_control:stop"
	EventInternalDisconnect = "internal_disconnect"
	EventInternalConnect    = "internal_connect"
)

// Payload is the decoded body of an inbound event.
type Payload map[string]any

// String returns the value under key if it is a string.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Handler handles one event.
type Handler interface {
	Handle(ctx context.Context, payload Payload) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, payload Payload) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}

// EventName builds a composite "<type>:<action>" name.
// An empty action yields the bare type.
func EventName(msgType, action string) string {
	if action == "" {
		return msgType
	}
	return fmt.Sprintf("%s:%s", msgType, action)
}

type event struct {
	name    string
	handler Handler
	payload Payload
}

// Router is the event registration table and its dispatch queue.
type Router struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	qmu   sync.Mutex
	queue []event
	wake  chan struct{}
}

// New creates a router. Nothing is handled until Run is started.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger.With("component", "router"),
		handlers: make(map[string]Handler),
		wake:     make(chan struct{}, 1),
	}
}

// Register installs handler for name, replacing any previous one.
func (r *Router) Register(name string, handler Handler) {
	r.mu.Lock()
	r.handlers[name] = handler
	r.mu.Unlock()
	r.logger.Info("registered handler", "event", name)
}

// RegisterFunc is Register for a plain function.
func (r *Router) RegisterFunc(name string, fn func(ctx context.Context, payload Payload) error) {
	r.Register(name, HandlerFunc(fn))
}

// Dispatch queues the handler for name and returns immediately.
// It reports false when no handler is registered.
func (r *Router) Dispatch(name string, payload Payload) bool {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("no handler registered", "event", name)
		return false
	}
	if payload == nil {
		payload = Payload{}
	}

	r.logger.Debug("dispatching", "event", name)
	r.qmu.Lock()
	r.queue = append(r.queue, event{name: name, handler: handler, payload: payload})
	r.qmu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

// Run invokes queued handlers in order until ctx is cancelled. Events still
// queued at that point are dropped.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.wake:
		}

		for _, ev := range r.take() {
			if ctx.Err() != nil {
				return nil
			}
			r.invoke(ctx, ev.name, ev.handler, ev.payload)
		}
	}
}

// Pending returns the number of queued events not yet taken by Run.
func (r *Router) Pending() int {
	r.qmu.Lock()
	defer r.qmu.Unlock()
	return len(r.queue)
}

func (r *Router) take() []event {
	r.qmu.Lock()
	defer r.qmu.Unlock()
	q := r.queue
	r.queue = nil
	return q
}

func (r *Router) invoke(ctx context.Context, name string, handler Handler, payload Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked", "event", name, "panic", rec)
		}
	}()

	if err := handler.Handle(ctx, payload); err != nil {
		if ctx.Err() != nil {
			r.logger.Debug("handler cancelled", "event", name, "error", err)
			return
		}
		r.logger.Error("handler error", "event", name, "error", err)
	}
}

// Events returns the registered event names, sorted.
func (r *Router) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
