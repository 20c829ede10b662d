// Package notify keeps the set of live merchant sessions and fans events out
// to them.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSendTimeout = 2 * time.Second
	DefaultFanoutLimit = 32
)

var ErrSendTimeout = errors.New("send timed out")

// Conn is one live merchant session. Send must be safe to call from one
// goroutine at a time; Close may be called concurrently with Send.
type Conn interface {
	Send(ctx context.Context, msg []byte) error
	Close() error
}

// Observer receives hub counters; metrics implements it.
type Observer interface {
	ConnectionsChanged(n int)
	Delivered(n int)
	Dropped(n int)
}

type HubConfig struct {
	SendTimeout time.Duration
	FanoutLimit int
	Observer    Observer
}

type Hub struct {
	mu    sync.Mutex
	conns map[Conn]struct{}

	sendTimeout time.Duration
	fanoutLimit int
	obs         Observer
	logger      *slog.Logger
}

func NewHub(cfg HubConfig, logger *slog.Logger) *Hub {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.FanoutLimit <= 0 {
		cfg.FanoutLimit = DefaultFanoutLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:       make(map[Conn]struct{}),
		sendTimeout: cfg.SendTimeout,
		fanoutLimit: cfg.FanoutLimit,
		obs:         cfg.Observer,
		logger:      logger,
	}
}

func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()

	h.changed(n)
	h.logger.Info("merchant connected", "connections", n)
}

// Unregister removes c. Removing an unknown connection is a no-op.
func (h *Hub) Unregister(c Conn) {
	if n, ok := h.remove(c); ok {
		h.changed(n)
		h.logger.Info("merchant disconnected", "connections", n)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

type BroadcastResult struct {
	Delivered int
	Dropped   int
}

// Broadcast sends msg to every connection registered when the call starts.
// Each send runs on its own goroutine with its own deadline; connections
// whose send fails or times out are dropped and closed after the fan-out.
func (h *Hub) Broadcast(ctx context.Context, msg []byte) BroadcastResult {
	targets := h.snapshot()
	if len(targets) == 0 {
		return BroadcastResult{}
	}

	var (
		mu     sync.Mutex
		failed []Conn
		g      errgroup.Group
	)
	g.SetLimit(h.fanoutLimit)
	for _, c := range targets {
		g.Go(func() error {
			if err := h.send(ctx, c, msg); err != nil {
				h.logger.Warn("notification delivery failed", "error", err)
				mu.Lock()
				failed = append(failed, c)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range failed {
		if n, ok := h.remove(c); ok {
			h.changed(n)
		}
		_ = c.Close()
	}

	res := BroadcastResult{Delivered: len(targets) - len(failed), Dropped: len(failed)}
	if h.obs != nil {
		h.obs.Delivered(res.Delivered)
		h.obs.Dropped(res.Dropped)
	}
	return res
}

// Notify encodes ev and broadcasts it. It implements orders.Notifier.
func (h *Hub) Notify(ctx context.Context, ev orders.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode notification", "error", err, "type", string(ev.Type))
		return
	}
	res := h.Broadcast(ctx, msg)
	h.logger.Debug("notification sent",
		"type", string(ev.Type), "order_id", ev.Key(), "delivered", res.Delivered, "dropped", res.Dropped)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[Conn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	h.changed(0)
}

// send bounds c.Send by the hub timeout even if c ignores its context.
func (h *Hub) send(ctx context.Context, c Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Send(ctx, msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ErrSendTimeout
	}
}

func (h *Hub) snapshot() []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Conn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

func (h *Hub) remove(c Conn) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return len(h.conns), false
	}
	delete(h.conns, c)
	return len(h.conns), true
}

func (h *Hub) changed(n int) {
	if h.obs != nil {
		h.obs.ConnectionsChanged(n)
	}
}
