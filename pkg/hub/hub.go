// Package hub tracks connected websocket clients, fans outbound messages out
// to them and hands inbound messages to a single callback.
//
// All client-set mutations happen on the Run goroutine; presence callbacks are
// invoked from it in connection order.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrStopped is returned by BroadcastJSON after Run has returned.
	ErrStopped = errors.New("hub: stopped")

	// ErrBackpressure is returned when the broadcast queue is full and the
	// message was dropped.
	ErrBackpressure = errors.New("hub: broadcast queue full")
)

// Options configures a Hub.
type Options struct {
	// Name for logging.
	Name   string
	Logger *slog.Logger

	// OnMessage receives every text message read from any client.
	OnMessage func(data []byte)

	// OnJoin is called after a client registers, with the new count.
	OnJoin func(clients int)

	// OnLeave is called after a client is removed, with the remaining count.
	OnLeave func(clients int)
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	name   string
	logger *slog.Logger
	opts   Options

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	doneOnce   sync.Once

	mu    sync.RWMutex
	count int
}

// New creates a hub. Call Run to start it.
func New(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "hub"
	}
	return &Hub{
		name:       opts.Name,
		logger:     logger.With("component", "hub", "hub", opts.Name),
		opts:       opts,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is done, after closing
// every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			h.logger.Info("hub stopped")
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = true
			count := h.setCount()
			h.logger.Info("client connected", "clients", count)
			if h.opts.OnJoin != nil {
				h.opts.OnJoin(count)
			}

		case client := <-h.unregister:
			if !h.clients[client] {
				continue
			}
			h.remove(client)
			count := h.setCount()
			h.logger.Info("client disconnected", "clients", count)
			if h.opts.OnLeave != nil {
				h.opts.OnLeave(count)
			}

		case message := <-h.broadcast:
			var dropped int
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full - they're too slow
					h.remove(client)
					dropped++
				}
			}
			if dropped == 0 {
				continue
			}
			count := h.setCount()
			h.logger.Warn("dropped slow clients", "dropped", dropped, "clients", count)
			if h.opts.OnLeave != nil {
				h.opts.OnLeave(count)
			}
		}
	}
}

// remove deletes the client and closes its send queue; Run goroutine only.
func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) setCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count = len(h.clients)
	return h.count
}

// Serve registers conn as a client and pumps it until the connection closes.
// It blocks, so call it from the websocket handler.
func (h *Hub) Serve(conn Conn) {
	client := newClient(h, conn)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	client.run()
}

// BroadcastJSON encodes v and queues it for every client.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrStopped
	default:
	}
	select {
	case h.broadcast <- data:
		return nil
	default:
		h.logger.Warn("broadcast queue full, dropping message")
		return ErrBackpressure
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) deliver(data []byte) {
	if h.opts.OnMessage != nil {
		h.opts.OnMessage(data)
	}
}
