// Package hub fans newly recorded clips out to live watchers such as
// streaming RPC clients. It knows nothing about transports: watchers
// register, receive events through Send, and unregister when done.
package hub

import (
	"log/slog"
	"sync"

	"go.klb.dev/clipstash/internal/clip"
)

// Event is delivered to every registered watcher.
type Event struct {
	Clip clip.Clip
	// Inserted is false when an existing clip moved to the head.
	Inserted bool
}

// Watcher receives hub events.
type Watcher interface {
	ID() string
	// Send delivers an event to the watcher. Must be non-blocking.
	Send(Event)
}

// Hub routes events to all registered watchers.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
	latest   *clip.Clip
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{watchers: make(map[string]Watcher)}
}

// Register adds a watcher and immediately delivers the latest event, if any.
func (h *Hub) Register(w Watcher) {
	h.mu.Lock()
	h.watchers[w.ID()] = w
	var latest *clip.Clip
	if h.latest != nil {
		c := h.latest.Clone()
		latest = &c
	}
	total := len(h.watchers)
	h.mu.Unlock()

	slog.Debug("watcher registered", "watcher", w.ID(), "total", total)

	if latest != nil {
		w.Send(Event{Clip: *latest})
	}
}

// Unregister removes a watcher.
func (h *Hub) Unregister(w Watcher) {
	h.mu.Lock()
	delete(h.watchers, w.ID())
	total := len(h.watchers)
	h.mu.Unlock()

	slog.Debug("watcher unregistered", "watcher", w.ID(), "total", total)
}

// Publish records c as the latest clip and sends it to every watcher.
func (h *Hub) Publish(c clip.Clip, inserted bool) {
	h.mu.Lock()
	latest := c.Clone()
	h.latest = &latest
	targets := make([]Watcher, 0, len(h.watchers))
	for _, w := range h.watchers {
		targets = append(targets, w)
	}
	h.mu.Unlock()

	for _, w := range targets {
		w.Send(Event{Clip: c.Clone(), Inserted: inserted})
	}
}

// Forget drops the remembered latest clip, for instance after the history
// was cleared.
func (h *Hub) Forget() {
	h.mu.Lock()
	h.latest = nil
	h.mu.Unlock()
}

// ForgetID drops the remembered latest clip if it has the given id.
func (h *Hub) ForgetID(id uint64) {
	h.mu.Lock()
	if h.latest != nil && h.latest.ID == id {
		h.latest = nil
	}
	h.mu.Unlock()
}

// Len returns the number of registered watchers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// Chan is a Watcher backed by a buffered channel. Events that do not fit
// are dropped.
type Chan struct {
	id string
	C  chan Event
}

// NewChan returns a Chan watcher with the given buffer size.
func NewChan(id string, size int) *Chan {
	return &Chan{id: id, C: make(chan Event, size)}
}

func (c *Chan) ID() string { return c.id }

// Send implements Watcher.
func (c *Chan) Send(ev Event) {
	select {
	case c.C <- ev:
	default:
		slog.Warn("watcher channel full, dropping", "watcher", c.id, "id", ev.Clip.ID)
	}
}
