// Package monitor watches the two selections and turns their changes into
// a stream of events. It also writes to them on behalf of the daemon and
// keeps those writes from coming back as events.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/logging"
	"go.klb.dev/clipstash/internal/selection"
)

var (
	// ErrInit is returned by New when an enabled selection cannot be opened.
	ErrInit = errors.New("monitor: cannot reach windowing system")
	// ErrSubscribed is returned by a second call to Subscribe.
	ErrSubscribed = errors.New("monitor: already subscribed")
	// ErrDisabled is returned by Publish for a disabled selection.
	ErrDisabled = errors.New("monitor: selection disabled")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("monitor: closed")
	// ErrInvalidKind is returned for an unknown selection kind.
	ErrInvalidKind = errors.New("monitor: invalid selection kind")

	errDisconnected = errors.New("selection disconnected")
)

const (
	// DefaultIgnoreWindow bounds how long an own write is remembered.
	DefaultIgnoreWindow = time.Second

	// maxReadFailures consecutive failed reads end a watcher.
	maxReadFailures = 20

	eventBuffer = 16
)

// State is the per-selection monitoring state.
type State uint8

const (
	Disabled State = iota
	Enabled
)

func (s State) String() string {
	if s == Enabled {
		return "enabled"
	}
	return "disabled"
}

// Options configures a Monitor.
type Options struct {
	// LoadCurrent emits the current content of each enabled selection
	// when the stream starts.
	LoadCurrent     bool
	EnableClipboard bool
	EnablePrimary   bool
	// FilterMinSize drops payloads shorter than this many bytes. Zero
	// disables the filter; empty payloads are always dropped.
	FilterMinSize int
	// IgnoreWindow is how long after Publish an equal event is treated
	// as an echo. Zero means DefaultIgnoreWindow.
	IgnoreWindow time.Duration
}

func (o Options) enabled(k clip.Kind) bool {
	if k == clip.KindPrimary {
		return o.EnablePrimary
	}
	return o.EnableClipboard
}

// Event is one observed selection change.
type Event struct {
	Kind clip.Kind
	Data []byte
}

// Opener opens the backend for one selection kind.
type Opener func(clip.Kind) (selection.Backend, error)

type watched struct {
	backend selection.Backend
	openErr error
	enabled bool

	lastSeen uint64
	haveSeen bool

	ownHash uint64
	ownAt   time.Time
	haveOwn bool

	// lost is set once the watcher gave up on the backend.
	lost bool
}

func (w *watched) usable() bool { return w.backend != nil && !w.lost }

// Monitor owns one backend per selection kind.
type Monitor struct {
	opts Options
	now  func() time.Time

	// pubMu serializes Publish so that the own-write record always
	// matches the last write handed to a backend.
	pubMu sync.Mutex

	mu         sync.Mutex
	sels       map[clip.Kind]*watched
	subscribed bool
	closed     bool
	done       chan struct{}
}

// New opens a backend for each kind. Failing to open an enabled kind
// fails with ErrInit. A disabled kind whose backend cannot be opened
// stays disabled for the lifetime of the monitor.
func New(opts Options, open Opener) (*Monitor, error) {
	if opts.IgnoreWindow <= 0 {
		opts.IgnoreWindow = DefaultIgnoreWindow
	}
	m := &Monitor{
		opts: opts,
		now:  time.Now,
		sels: make(map[clip.Kind]*watched, len(clip.Kinds)),
		done: make(chan struct{}),
	}
	for _, k := range clip.Kinds {
		w := &watched{enabled: opts.enabled(k)}
		b, err := open(k)
		switch {
		case err != nil && w.enabled:
			m.closeBackends()
			return nil, fmt.Errorf("%w: %s selection: %w", ErrInit, k, err)
		case err != nil:
			slog.Debug("selection unavailable", "kind", k, "err", err)
			w.openErr, w.enabled = err, false
		default:
			w.backend = b
			slog.Debug("selection opened", "kind", k, "backend", b.Name(), "enabled", w.enabled)
		}
		m.sels[k] = w
	}
	return m, nil
}

// Subscribe starts one watcher per opened selection and returns their
// merged event stream. It may be called once. The channel is closed
// when ctx is done, when the monitor is closed or when an enabled
// selection disconnects permanently. A disconnected selection stays
// disabled and rejects Publish and Enable with selection.ErrUnavailable.
func (m *Monitor) Subscribe(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.subscribed {
		return nil, ErrSubscribed
	}
	m.subscribed = true

	streamCtx, stop := context.WithCancel(ctx)
	out := make(chan Event, eventBuffer)
	var wg sync.WaitGroup
	for _, k := range clip.Kinds {
		w := m.sels[k]
		if w.backend == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.watch(streamCtx, k, w.backend, out) && m.lose(k) {
				stop()
			}
		}()
	}
	go func() {
		wg.Wait()
		stop()
		close(out)
	}()
	return out, nil
}

// lose marks kind as permanently unavailable and reports whether it was
// being monitored.
func (m *Monitor) lose(kind clip.Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.sels[kind]
	wasEnabled := w.enabled
	w.lost, w.enabled, w.haveOwn = true, false, false
	w.openErr = errDisconnected
	return wasEnabled
}

// watch reads kind until it stops. It returns true when the backend
// disconnected permanently.
func (m *Monitor) watch(ctx context.Context, kind clip.Kind, b selection.Backend, out chan<- Event) bool {
	emit := func(data []byte) bool {
		if !m.accept(kind, data) {
			return true
		}
		select {
		case out <- Event{Kind: kind, Data: data}:
			return true
		case <-ctx.Done():
			return false
		case <-m.done:
			return false
		}
	}

	if m.opts.LoadCurrent && m.State(kind) == Enabled {
		data, err := b.Read()
		if err != nil {
			slog.Warn("read current selection", "kind", kind, "err", err)
		} else if !emit(data) {
			return false
		}
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return false
		case <-m.done:
			return false
		case _, ok := <-b.Watch():
			if !ok {
				slog.Warn("selection disconnected", "kind", kind, "backend", b.Name())
				return true
			}
		}

		data, err := b.Read()
		if err != nil {
			failures++
			if failures >= maxReadFailures {
				slog.Error("selection unreadable, giving up", "kind", kind, "failures", failures, "err", err)
				return true
			}
			slog.Warn("read selection", "kind", kind, "err", err)
			continue
		}
		failures = 0
		if !emit(data) {
			return false
		}
	}
}

// accept decides whether data read from kind becomes an event.
func (m *Monitor) accept(kind clip.Kind, data []byte) bool {
	h := xxh3.Hash(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.sels[kind]

	// Only the first event after Publish can be its echo.
	echo := w.haveOwn && w.ownHash == h && m.now().Sub(w.ownAt) <= m.opts.IgnoreWindow
	w.haveOwn = false

	if w.haveSeen && w.lastSeen == h {
		return false
	}
	w.lastSeen, w.haveSeen = h, true

	if !w.enabled {
		return false
	}
	if len(data) == 0 || len(data) < m.opts.FilterMinSize {
		slog.Log(context.Background(), logging.LevelTrace, "selection filtered", "kind", kind, "size", len(data))
		return false
	}
	return !echo
}

// Publish writes data to the kind selection. The write is not reported
// back through the event stream.
func (m *Monitor) Publish(kind clip.Kind, data []byte) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	h := xxh3.Hash(data)
	m.mu.Lock()
	w := m.sels[kind]
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case !w.usable():
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", selection.ErrUnavailable, w.openErr)
	case !w.enabled:
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDisabled, kind)
	}
	prevSeen, prevHave := w.lastSeen, w.haveSeen
	w.lastSeen, w.haveSeen = h, true
	w.ownHash, w.ownAt, w.haveOwn = h, m.now(), true
	b := w.backend
	m.mu.Unlock()

	if err := b.Write(data); err != nil {
		m.mu.Lock()
		if w.lastSeen == h {
			w.lastSeen, w.haveSeen = prevSeen, prevHave
		}
		w.haveOwn = false
		m.mu.Unlock()
		return fmt.Errorf("monitor: write %s selection: %w", kind, err)
	}
	return nil
}

// Enable turns monitoring of kind on.
func (m *Monitor) Enable(kind clip.Kind) error { return m.setEnabled(kind, true) }

// Disable turns monitoring of kind off. Disabled selections produce no
// events and reject Publish.
func (m *Monitor) Disable(kind clip.Kind) error { return m.setEnabled(kind, false) }

func (m *Monitor) setEnabled(kind clip.Kind, on bool) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.sels[kind]
	if on && !w.usable() {
		return fmt.Errorf("%w: %v", selection.ErrUnavailable, w.openErr)
	}
	if w.enabled != on {
		w.enabled = on
		slog.Info("selection monitoring changed", "kind", kind, "enabled", on)
	}
	return nil
}

// State reports whether kind is being monitored.
func (m *Monitor) State(kind clip.Kind) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.sels[kind]; ok && w.enabled {
		return Enabled
	}
	return Disabled
}

// BackendName returns the name of the backend serving kind, or "" when
// the selection could not be opened.
func (m *Monitor) BackendName(kind clip.Kind) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.sels[kind]; ok && w.backend != nil {
		return w.backend.Name()
	}
	return ""
}

// Close stops the watchers and closes every backend. It is idempotent.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()
	m.closeBackends()
}

func (m *Monitor) closeBackends() {
	for _, w := range m.sels {
		if w.backend != nil {
			w.backend.Close()
		}
	}
}
