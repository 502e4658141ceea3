// Package manager holds the authoritative in-memory clipboard history.
//
// The history is bounded, ordered most-recent-first and holds at most one
// entry per distinct payload. Inserting a payload that is already present
// moves it to the head and keeps its ID. A Manager is safe for concurrent
// use; its lock is never held across I/O.
package manager

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"go.klb.dev/clipstash/internal/clip"
)

var (
	// ErrEmptyData is returned when inserting an empty payload.
	ErrEmptyData = errors.New("manager: empty clip data")
	// ErrNotFound is returned when an ID does not name a clip in the history.
	ErrNotFound = errors.New("manager: clip not found")
	// ErrInvalidCapacity is returned by New for a capacity below 1.
	ErrInvalidCapacity = errors.New("manager: capacity must be at least 1")
	// ErrInvalidKind is returned for an unknown selection kind.
	ErrInvalidKind = errors.New("manager: invalid selection kind")
)

// Manager is the bounded clip index and ID allocator.
type Manager struct {
	mu       sync.Mutex
	capacity int
	// lru is keyed by the clip payload; recency order is history order.
	lru     *simplelru.LRU[string, *clip.Clip]
	byID    map[uint64]string
	current map[clip.Kind]uint64
	nextID  uint64
	now     func() time.Time
}

// New returns an empty Manager that holds at most capacity clips.
func New(capacity int) (*Manager, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	m := &Manager{
		capacity: capacity,
		byID:     make(map[uint64]string, capacity),
		current:  make(map[clip.Kind]uint64, len(clip.Kinds)),
		now:      time.Now,
	}
	lru, err := simplelru.NewLRU[string, *clip.Clip](capacity, m.forget)
	if err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}
	m.lru = lru
	return m, nil
}

// forget drops the secondary indexes of a clip leaving the LRU. It runs
// for evictions, removals and purges, always with m.mu held.
func (m *Manager) forget(_ string, c *clip.Clip) {
	delete(m.byID, c.ID)
	for k, id := range m.current {
		if id == c.ID {
			delete(m.current, k)
		}
	}
}

// Insert records data observed on the given selection. When data is
// already present the existing entry moves to the head, its kind and
// timestamp are refreshed and inserted is false. Either way the clip
// becomes current for kind.
func (m *Manager) Insert(kind clip.Kind, data []byte) (id uint64, inserted bool, err error) {
	if len(data) == 0 {
		return 0, false, ErrEmptyData
	}
	if !kind.Valid() {
		return 0, false, fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := string(data)
	if c, ok := m.lru.Get(key); ok {
		c.Kind = kind
		c.Timestamp = m.now()
		m.current[kind] = c.ID
		return c.ID, false, nil
	}

	m.nextID++
	c := &clip.Clip{
		ID:        m.nextID,
		Data:      []byte(key),
		Kind:      kind,
		Timestamp: m.now(),
	}
	m.lru.Add(key, c)
	m.byID[c.ID] = key
	m.current[kind] = c.ID
	return c.ID, true, nil
}

// Get returns the clip with the given ID.
func (m *Manager) Get(id uint64) (clip.Clip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.lookupLocked(id)
	if !ok {
		return clip.Clip{}, false
	}
	return c.Clone(), true
}

func (m *Manager) lookupLocked(id uint64) (*clip.Clip, bool) {
	key, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return m.lru.Peek(key)
}

// List returns a snapshot of the history, most recent first.
func (m *Manager) List() []clip.Clip {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.lru.Keys() // oldest to newest
	out := make([]clip.Clip, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if c, ok := m.lru.Peek(keys[i]); ok {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Remove deletes the clip with the given ID and reports whether it was present.
func (m *Manager) Remove(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.byID[id]
	if !ok {
		return false
	}
	return m.lru.Remove(key)
}

// Clear empties the history. IDs keep increasing afterwards.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Purge()
	clear(m.byID)
	clear(m.current)
}

// MarkAsCurrent makes id the current clip of the given selection.
func (m *Manager) MarkAsCurrent(id uint64, kind clip.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	m.current[kind] = id
	return nil
}

// Current returns the clip most recently published to or observed on kind.
func (m *Manager) Current(kind clip.Kind) (clip.Clip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.current[kind]
	if !ok {
		return clip.Clip{}, false
	}
	c, ok := m.lookupLocked(id)
	if !ok {
		return clip.Clip{}, false
	}
	return c.Clone(), true
}

// Import bulk-loads clips given most recent first, typically the snapshot
// read from the history store at startup. Empty payloads are skipped,
// repeated payloads keep their newest occurrence, and distinct payloads
// beyond the capacity are dropped. Every clip gets a fresh ID.
// Kinds and timestamps are kept. Imported clips never become current.
func (m *Manager) Import(clips []clip.Clip) {
	// The newest occurrence of each payload wins; stop once capacity
	// distinct payloads are found.
	n := min(len(clips), m.capacity)
	seen := make(map[string]struct{}, n)
	keep := make([]clip.Clip, 0, n)
	for _, in := range clips {
		if len(keep) == m.capacity {
			break
		}
		if len(in.Data) == 0 {
			continue
		}
		if _, dup := seen[string(in.Data)]; dup {
			continue
		}
		seen[string(in.Data)] = struct{}{}
		keep = append(keep, in)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Oldest first so the newest ends up at the head.
	for i := len(keep) - 1; i >= 0; i-- {
		in := keep[i]
		key := string(in.Data)
		if c, ok := m.lru.Get(key); ok {
			c.Kind = in.Kind
			c.Timestamp = in.Timestamp
			continue
		}
		m.nextID++
		ts := in.Timestamp
		if ts.IsZero() {
			ts = m.now()
		}
		c := &clip.Clip{ID: m.nextID, Data: []byte(key), Kind: in.Kind, Timestamp: ts}
		m.lru.Add(key, c)
		m.byID[c.ID] = key
	}
}

// Len returns the number of clips in the history.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Capacity returns the maximum number of clips.
func (m *Manager) Capacity() int { return m.capacity }
