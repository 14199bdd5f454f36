// Package events fans target update notifications out to the editors
// subscribed to a workspace.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/iudanet/tmmerge/internal/models"
)

// DefaultBufferSize is the per subscriber queue length.
const DefaultBufferSize = 64

// Hub is an in-process publish/subscribe hub keyed by workspace.
type Hub struct {
	logger *slog.Logger
	idGen  func() string
	now    func() time.Time
	subs   map[models.WorkspaceID]map[*Subscription]struct{}
	buffer int
	mu     sync.RWMutex
	closed bool
}

// Subscription receives the events of one workspace until closed.
type Subscription struct {
	hub       *Hub
	ch        chan models.TextFlowTargetUpdated
	workspace models.WorkspaceID
	once      sync.Once
}

// NewHub creates a hub; buffer <= 0 selects DefaultBufferSize.
func NewHub(logger *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Hub{
		logger: logger,
		idGen:  func() string { return ulid.Make().String() },
		now:    time.Now,
		subs:   make(map[models.WorkspaceID]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for ws.
func (h *Hub) Subscribe(ws models.WorkspaceID) *Subscription {
	sub := &Subscription{
		hub:       h,
		ch:        make(chan models.TextFlowTargetUpdated, h.buffer),
		workspace: ws,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	if h.subs[ws] == nil {
		h.subs[ws] = make(map[*Subscription]struct{})
	}
	h.subs[ws][sub] = struct{}{}
	return sub
}

// Active reports whether anyone listens on ws.
func (h *Hub) Active(ws models.WorkspaceID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ws]) > 0
}

// Publish delivers ev to every subscriber of its workspace without blocking.
// A subscriber whose queue is full misses the event.
func (h *Hub) Publish(ctx context.Context, ev models.TextFlowTargetUpdated) {
	if ev.ID == "" {
		ev.ID = h.idGen()
	}
	if ev.Time.IsZero() {
		ev.Time = h.now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.Workspace] {
		select {
		case sub.ch <- ev:
		default:
			h.logger.WarnContext(ctx, "event dropped for slow subscriber",
				slog.String("workspace", ev.Workspace.String()),
				slog.String("event_id", ev.ID))
		}
	}
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	h.subs = make(map[models.WorkspaceID]map[*Subscription]struct{})
}

// Events is closed when the subscription or the hub is closed.
func (s *Subscription) Events() <-chan models.TextFlowTargetUpdated {
	return s.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[s.workspace]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.workspace)
		}
	}
	s.once.Do(func() { close(s.ch) })
}
