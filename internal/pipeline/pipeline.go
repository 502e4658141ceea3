// Package pipeline turns monitor events into history entries. It mirrors
// new content onto the opposite selection and persists the history.
//
// The worker is the only owner of the history store. Other components
// ask for a snapshot with RequestSave; requests made while a save is in
// flight collapse into a single follow-up save.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
	"go.klb.dev/clipstash/internal/manager"
	"go.klb.dev/clipstash/internal/monitor"
)

// ErrStreamClosed is returned by Run when the monitor's event stream ends
// while the worker is still wanted.
var ErrStreamClosed = errors.New("pipeline: monitor event stream closed")

// Selections is the part of the monitor the worker writes through.
type Selections interface {
	Publish(kind clip.Kind, data []byte) error
	State(kind clip.Kind) monitor.State
}

// Worker is the event loop between the monitor and the manager.
type Worker struct {
	m     *manager.Manager
	sel   Selections
	store history.Store
	hub   *hub.Hub

	// saveReq holds at most one queued save.
	saveReq chan struct{}

	saves        atomic.Uint64
	saveFailures atomic.Uint64
}

// New returns a Worker. h may be nil.
func New(m *manager.Manager, sel Selections, store history.Store, h *hub.Hub) *Worker {
	if h == nil {
		h = hub.New()
	}
	return &Worker{
		m:       m,
		sel:     sel,
		store:   store,
		hub:     h,
		saveReq: make(chan struct{}, 1),
	}
}

// RequestSave schedules a snapshot of the history. It never blocks.
func (w *Worker) RequestSave() {
	select {
	case w.saveReq <- struct{}{}:
	default:
	}
}

// Stats returns the number of successful and failed saves so far.
func (w *Worker) Stats() (saves, failures uint64) {
	return w.saves.Load(), w.saveFailures.Load()
}

// Run consumes events until ctx is done or the stream closes. Before
// returning it waits for an in-flight save and writes a final snapshot.
// It returns nil after cancellation and ErrStreamClosed when the stream
// ended on its own.
func (w *Worker) Run(ctx context.Context, events <-chan monitor.Event) error {
	saverCtx, stopSaver := context.WithCancel(context.Background())
	saverDone := make(chan struct{})
	go func() {
		defer close(saverDone)
		w.saver(saverCtx)
	}()

	err := w.loop(ctx, events)

	stopSaver()
	<-saverDone
	w.save()

	saves, failures := w.Stats()
	slog.Info("pipeline stopped", "saves", saves, "save_failures", failures, "clips", w.m.Len())
	return err
}

func (w *Worker) loop(ctx context.Context, events <-chan monitor.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrStreamClosed
			}
			w.handle(ev)
		}
	}
}

func (w *Worker) saver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.saveReq:
			w.save()
		}
	}
}

func (w *Worker) save() {
	clips := w.m.List()
	if err := w.store.Save(clips); err != nil {
		w.saveFailures.Add(1)
		slog.Error("save history", "path", w.store.Path(), "err", err)
		return
	}
	w.saves.Add(1)
	slog.Debug("history saved", "path", w.store.Path(), "clips", len(clips))
}

func (w *Worker) handle(ev monitor.Event) {
	id, inserted, err := w.m.Insert(ev.Kind, ev.Data)
	if err != nil {
		slog.Warn("drop selection event", "kind", ev.Kind, "err", err)
		return
	}
	c, ok := w.m.Get(id)
	if !ok {
		return
	}

	if inserted {
		hub.LogClip("clip recorded", c)
		w.RequestSave()
	} else {
		slog.Debug("duplicate clip moved to head", "id", id, "kind", ev.Kind)
	}
	w.hub.Publish(c, inserted)

	w.mirror(id, ev)
}

// mirror copies ev onto the other selection when both are monitored and
// the other one does not already hold the same content.
func (w *Worker) mirror(id uint64, ev monitor.Event) {
	other := ev.Kind.Other()
	if w.sel.State(ev.Kind) != monitor.Enabled || w.sel.State(other) != monitor.Enabled {
		return
	}
	if cur, ok := w.m.Current(other); ok && bytes.Equal(cur.Data, ev.Data) {
		return
	}
	if err := w.sel.Publish(other, ev.Data); err != nil {
		slog.Warn("mirror selection", "from", ev.Kind, "to", other, "id", id, "err", err)
		return
	}
	if err := w.m.MarkAsCurrent(id, other); err != nil {
		slog.Debug("mirrored clip vanished", "id", id, "err", err)
		return
	}
	slog.Debug("selection mirrored", "id", id, "from", ev.Kind, "to", other)
}
