package events

import (
	"sync"

	"wasabix/core/types"
	"wasabix/observability"
)

// Broadcaster is implemented by typed events that can render themselves into
// the wire-level attribute map consumed by RPC subscribers.
type Broadcaster interface {
	Event() *types.Event
}

const defaultBacklog = 256

// Hub fans typed protocol events out to subscribers. It satisfies Emitter so
// engines can publish without knowing who listens. A bounded backlog of the
// most recent events is replayed to new subscribers.
type Hub struct {
	mu      sync.Mutex
	backlog []*types.Event
	cap     int
	subs    map[uint64]chan *types.Event
	nextSub uint64
}

// NewHub constructs a hub retaining up to backlog recent events. A
// non-positive backlog falls back to the default.
func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &Hub{
		cap:  backlog,
		subs: make(map[uint64]chan *types.Event),
	}
}

// Emit implements the Emitter interface. Slow subscribers are skipped rather
// than blocking the emitting engine.
func (h *Hub) Emit(evt Event) {
	if h == nil || evt == nil {
		return
	}
	payload := render(evt)
	observability.Events().RecordEvent(payload.Type)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backlog = append(h.backlog, payload)
	if len(h.backlog) > h.cap {
		h.backlog = h.backlog[len(h.backlog)-h.cap:]
	}
	for _, ch := range h.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a listener. It returns the live channel, a replay of the
// retained backlog, and a cancel function that must be called to release the
// subscription.
func (h *Hub) Subscribe() (<-chan *types.Event, []*types.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	ch := make(chan *types.Event, h.cap)
	h.subs[id] = ch
	replay := make([]*types.Event, len(h.backlog))
	copy(replay, h.backlog)
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing)
		}
	}
	return ch, replay, cancel
}

func render(evt Event) *types.Event {
	if b, ok := evt.(Broadcaster); ok {
		if payload := b.Event(); payload != nil {
			return payload
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}
