// Package task provides a registry of named, cancellable background work.
//
// Every long-running goroutine in the process is started through a Manager so
// that it can be found by name and so that CancelAll reaches all of it. A name
// holds at most one live task: starting a second task under the same name
// cancels the first and waits for it to return before the new one begins.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Work is the body of a task. It must return promptly once ctx is done.
type Work func(ctx context.Context) error

type entry struct {
	name   string
	anon   bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the task registry.
type Manager struct {
	base   context.Context
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*entry
	slots map[string]*sync.Mutex
}

// NewManager creates a manager whose tasks derive their context from base.
func NewManager(base context.Context, logger *slog.Logger) *Manager {
	if base == nil {
		base = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		base:   base,
		logger: logger.With("component", "task"),
		tasks:  make(map[string]*entry),
		slots:  make(map[string]*sync.Mutex),
	}
}

// slot returns the lock serializing Start/Cancel for one name.
func (m *Manager) slot(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[name]
	if !ok {
		s = &sync.Mutex{}
		m.slots[name] = s
	}
	return s
}

// Start cancels any task registered under name, waits for it to exit, then
// runs work in a new goroutine registered under name.
//
// Start must not be called from inside the task it would replace.
func (m *Manager) Start(name string, work Work) {
	s := m.slot(name)
	s.Lock()
	defer s.Unlock()

	m.cancelLocked(name)
	m.launch(name, false, work)
	m.logger.Info("task started", "task", name)
}

// Go runs anonymous background work under a generated unique name so that it
// is still reached by CancelAll. It returns the generated name.
func (m *Manager) Go(label string, work Work) string {
	name := fmt.Sprintf("%s#%s", label, uuid.NewString()[:8])
	m.launch(name, true, work)
	m.logger.Debug("background task started", "task", name)
	return name
}

func (m *Manager) launch(name string, anon bool, work Work) {
	ctx, cancel := context.WithCancel(m.base)
	e := &entry{name: name, anon: anon, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.tasks[name] = e
	m.mu.Unlock()

	go m.run(ctx, e, work)
}

func (m *Manager) run(ctx context.Context, e *entry, work Work) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("task panicked", "task", e.name, "panic", r)
		}

		m.mu.Lock()
		if m.tasks[e.name] == e {
			delete(m.tasks, e.name)
		}
		m.mu.Unlock()

		e.cancel()
		close(e.done)
	}()

	err := work(ctx)
	switch {
	case err == nil:
		m.logger.Debug("task finished", "task", e.name)
	case errors.Is(err, context.Canceled):
		m.logger.Debug("task exited after cancellation", "task", e.name)
	default:
		m.logger.Error("task failed", "task", e.name, "error", err)
	}
}

// Cancel requests cancellation of the named task and blocks until it has
// returned. Cancelling an unknown or finished task is a no-op.
func (m *Manager) Cancel(name string) {
	s := m.slot(name)
	s.Lock()
	defer s.Unlock()
	m.cancelLocked(name)
}

// cancelLocked expects the caller to hold the slot lock for name.
func (m *Manager) cancelLocked(name string) {
	m.mu.Lock()
	e, ok := m.tasks[name]
	if ok {
		delete(m.tasks, name)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.stop(e)
}

func (m *Manager) stop(e *entry) {
	select {
	case <-e.done:
		return
	default:
	}

	m.logger.Info("cancelling task", "task", e.name)
	e.cancel()
	<-e.done
}

// CancelAll cancels every registered task and waits for all of them.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.tasks))
	for _, e := range m.tasks {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			if e.anon {
				m.stop(e)
				return
			}
			m.Cancel(e.name)
		}(e)
	}
	wg.Wait()
}

// Running reports whether a live task is registered under name.
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	e, ok := m.tasks[name]
	m.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// Names returns the sorted names of registered tasks.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tasks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
