package selection

import (
	"errors"
	"sync"

	"go.klb.dev/clipstash/internal/clip"
)

// ErrClosed is returned by Memory operations after Close.
var ErrClosed = errors.New("selection: backend closed")

// Memory is an in-process selection. The daemon uses it when no windowing
// system is wanted; tests use Set to play the part of another application.
type Memory struct {
	kind clip.Kind

	mu      sync.Mutex
	data    []byte
	writes  [][]byte
	readErr error
	closed  bool
	watchCh chan struct{}
}

// NewMemory returns an empty Memory selection for kind.
func NewMemory(kind clip.Kind) *Memory {
	return &Memory{kind: kind, watchCh: make(chan struct{}, 1)}
}

func (m *Memory) Name() string { return "memory " + m.kind.String() }

// Read implements Backend.
func (m *Memory) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]byte(nil), m.data...), nil
}

// Write implements Backend. Like a real selection owner change it
// signals watchers.
func (m *Memory) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data = append([]byte(nil), data...)
	m.writes = append(m.writes, m.data)
	notify(m.watchCh)
	return nil
}

// Set replaces the content as if another application took the selection.
func (m *Memory) Set(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.data = append([]byte(nil), data...)
	notify(m.watchCh)
}

// FailReads makes subsequent reads return err until called with nil.
// Each call signals watchers.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
	if !m.closed {
		notify(m.watchCh)
	}
}

// Writes returns every payload passed to Write, oldest first.
func (m *Memory) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Watch implements Backend.
func (m *Memory) Watch() <-chan struct{} { return m.watchCh }

// Close implements Backend. It closes the watch channel, which readers
// treat as a permanent disconnect.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.watchCh)
	}
}
