// Package hub keeps the set of live subscribers and fans payloads out to them.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/proctrack/internal/metrics"
)

const (
	DefaultSendTimeout = 5 * time.Second
	DefaultQueueSize   = 16
)

// Subscriber is one live receiver of broadcast payloads. Send must honor ctx.
type Subscriber interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Result summarizes one Broadcast call. Queued payloads are written by the
// subscriber's own writer; a failed write evicts it later.
type Result struct {
	Queued  int
	Evicted int
}

type Options struct {
	SendTimeout time.Duration
	// QueueSize is the per-subscriber mailbox capacity.
	QueueSize int
	Logger    *slog.Logger
}

// client pairs a subscriber with its mailbox. Only the writer goroutine
// calls sub.Send, so payloads reach a subscriber in broadcast order.
type client struct {
	sub     Subscriber
	mailbox chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
}

// Hub is safe for concurrent use. Connect and Disconnect may run while a
// Broadcast is in flight; a broadcast only sees the set as it was at start.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc

	sendTimeout time.Duration
	queueSize   int
	logger      *slog.Logger
}

func New(opts Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:     make(map[string]*client),
		ctx:         ctx,
		cancel:      cancel,
		sendTimeout: opts.SendTimeout,
		queueSize:   opts.QueueSize,
		logger:      opts.Logger,
	}
	if h.sendTimeout <= 0 {
		h.sendTimeout = DefaultSendTimeout
	}
	if h.queueSize <= 0 {
		h.queueSize = DefaultQueueSize
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Connect registers sub, starts its writer and returns its id. After Close,
// sub is closed immediately and an empty id is returned.
func (h *Hub) Connect(sub Subscriber) string {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = sub.Close()
		return ""
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(h.ctx)
	c := &client{
		sub:     sub,
		mailbox: make(chan []byte, h.queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	h.clients[id] = c
	n := len(h.clients)
	h.mu.Unlock()

	go h.writer(id, c)

	metrics.SetSubscribers(n)
	h.logger.Debug("subscriber connected", "subscriber", id, "subscribers", n)
	return id
}

func (h *Hub) writer(id string, c *client) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case payload := <-c.mailbox:
			sctx, cancel := context.WithTimeout(c.ctx, h.sendTimeout)
			err := c.sub.Send(sctx, payload)
			cancel()
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				metrics.AddDeliveries(0, 1)
				h.logger.Warn("deliver to subscriber failed", "subscriber", id, "error", err)
				h.Disconnect(id)
				return
			}
			metrics.AddDeliveries(1, 0)
		}
	}
}

// Disconnect removes and closes the subscriber and stops its writer.
// It reports whether id was present.
func (h *Hub) Disconnect(id string) bool {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return false
	}

	c.cancel()
	if err := c.sub.Close(); err != nil {
		h.logger.Debug("close subscriber", "subscriber", id, "error", err)
	}
	metrics.SetSubscribers(n)
	h.logger.Debug("subscriber disconnected", "subscriber", id, "subscribers", n)
	return true
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast hands payload to the mailbox of every subscriber registered when
// the call starts and returns without waiting for any write. A subscriber
// whose mailbox is full is evicted. Payload must not be modified afterwards.
func (h *Hub) Broadcast(ctx context.Context, payload []byte) Result {
	h.mu.RLock()
	targets := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		targets[id] = c
	}
	h.mu.RUnlock()

	var (
		res  Result
		full []string
	)
	for id, c := range targets {
		if ctx.Err() != nil {
			break
		}
		select {
		case c.mailbox <- payload:
			res.Queued++
		default:
			res.Evicted++
			full = append(full, id)
		}
	}

	for _, id := range full {
		h.logger.Warn("subscriber mailbox full, evicting", "subscriber", id)
		h.Disconnect(id)
	}
	if len(full) > 0 {
		metrics.AddDeliveries(0, len(full))
	}
	return res
}

// Close disconnects every subscriber, stops their writers and rejects
// later connects.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	h.cancel()
	for id, c := range clients {
		if err := c.sub.Close(); err != nil {
			h.logger.Debug("close subscriber", "subscriber", id, "error", err)
		}
	}
	metrics.SetSubscribers(0)
}
