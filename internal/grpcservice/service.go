// Package grpcservice implements the HistoryService gRPC server.
package grpcservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/hub"
	"go.klb.dev/clipstash/internal/manager"
	"go.klb.dev/clipstash/internal/monitor"
	"go.klb.dev/clipstash/internal/rpc"
	"go.klb.dev/clipstash/internal/selection"
)

// Selections is the part of the monitor the RPC server drives.
type Selections interface {
	Publish(kind clip.Kind, data []byte) error
	Enable(kind clip.Kind) error
	Disable(kind clip.Kind) error
	State(kind clip.Kind) monitor.State
}

// Saver schedules a history snapshot. The pipeline owns the store.
type Saver interface {
	RequestSave()
}

// Service implements rpc.HistoryServer.
type Service struct {
	m     *manager.Manager
	sel   Selections
	saver Saver
	h     *hub.Hub

	watchSeq atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

var _ rpc.HistoryServer = (*Service)(nil)

// New returns a Service over the given manager and monitor.
func New(m *manager.Manager, sel Selections, saver Saver, h *hub.Hub) *Service {
	return &Service{m: m, sel: sel, saver: saver, h: h, done: make(chan struct{})}
}

// Close ends every open Watch stream so a graceful server stop is not
// held up by idle watchers.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// List implements HistoryService.List.
func (s *Service) List(context.Context, *rpc.Empty) (*rpc.ListResponse, error) {
	return &rpc.ListResponse{Clips: s.m.List()}, nil
}

// Get implements HistoryService.Get.
func (s *Service) Get(_ context.Context, req *rpc.IDRequest) (*rpc.ClipResponse, error) {
	c, ok := s.m.Get(req.ID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no clip with id %d", req.ID)
	}
	return &rpc.ClipResponse{Clip: c}, nil
}

// Update implements HistoryService.Update.
func (s *Service) Update(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
	return s.Mark(ctx, &rpc.MarkRequest{ID: req.ID, Kind: clip.DefaultKind})
}

// Mark implements HistoryService.Mark. The manager is released before
// the selection is written.
func (s *Service) Mark(_ context.Context, req *rpc.MarkRequest) (*rpc.Empty, error) {
	if !req.Kind.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "invalid selection kind %d", req.Kind)
	}
	c, ok := s.m.Get(req.ID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no clip with id %d", req.ID)
	}
	if err := s.sel.Publish(req.Kind, c.Data); err != nil {
		return nil, toStatus(err)
	}
	if err := s.m.MarkAsCurrent(req.ID, req.Kind); err != nil {
		// Removed while the selection was written.
		return nil, toStatus(err)
	}
	slog.Debug("clip marked current", "id", req.ID, "kind", req.Kind)
	return &rpc.Empty{}, nil
}

// Delete implements HistoryService.Delete.
func (s *Service) Delete(_ context.Context, req *rpc.IDRequest) (*rpc.DeleteResponse, error) {
	deleted := s.m.Remove(req.ID)
	if deleted {
		s.h.ForgetID(req.ID)
		slog.Info("clip deleted", "id", req.ID)
		s.saver.RequestSave()
	}
	return &rpc.DeleteResponse{Deleted: deleted}, nil
}

// Clear implements HistoryService.Clear.
func (s *Service) Clear(context.Context, *rpc.Empty) (*rpc.Empty, error) {
	n := s.m.Len()
	s.m.Clear()
	s.h.Forget()
	slog.Info("history cleared", "removed", n)
	s.saver.RequestSave()
	return &rpc.Empty{}, nil
}

// Length implements HistoryService.Length.
func (s *Service) Length(context.Context, *rpc.Empty) (*rpc.LengthResponse, error) {
	return &rpc.LengthResponse{Length: uint64(s.m.Len())}, nil
}

// EnableMonitor implements HistoryService.EnableMonitor.
func (s *Service) EnableMonitor(_ context.Context, req *rpc.KindRequest) (*rpc.MonitorStateResponse, error) {
	return s.toggle(req.Kind, s.sel.Enable)
}

// DisableMonitor implements HistoryService.DisableMonitor.
func (s *Service) DisableMonitor(_ context.Context, req *rpc.KindRequest) (*rpc.MonitorStateResponse, error) {
	return s.toggle(req.Kind, s.sel.Disable)
}

func (s *Service) toggle(kind clip.Kind, fn func(clip.Kind) error) (*rpc.MonitorStateResponse, error) {
	if !kind.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "invalid selection kind %d", kind)
	}
	if err := fn(kind); err != nil {
		return nil, toStatus(err)
	}
	return s.state(kind), nil
}

// MonitorState implements HistoryService.MonitorState.
func (s *Service) MonitorState(_ context.Context, req *rpc.KindRequest) (*rpc.MonitorStateResponse, error) {
	if !req.Kind.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "invalid selection kind %d", req.Kind)
	}
	return s.state(req.Kind), nil
}

func (s *Service) state(kind clip.Kind) *rpc.MonitorStateResponse {
	return &rpc.MonitorStateResponse{Kind: kind, Enabled: s.sel.State(kind) == monitor.Enabled}
}

// Insert implements HistoryService.Insert. The clip is recorded first;
// publishing to the selection is best effort.
func (s *Service) Insert(_ context.Context, req *rpc.InsertRequest) (*rpc.InsertResponse, error) {
	id, inserted, err := s.m.Insert(req.Kind, req.Data)
	if err != nil {
		return nil, toStatus(err)
	}
	if c, ok := s.m.Get(id); ok {
		s.h.Publish(c, inserted)
		hub.LogClip("clip received", c)
	}
	if inserted {
		s.saver.RequestSave()
	}
	if s.sel.State(req.Kind) == monitor.Enabled {
		if err := s.sel.Publish(req.Kind, req.Data); err != nil {
			slog.Warn("publish inserted clip", "id", id, "kind", req.Kind, "err", err)
		}
	}
	return &rpc.InsertResponse{ID: id, Inserted: inserted}, nil
}

// Current implements HistoryService.Current.
func (s *Service) Current(_ context.Context, req *rpc.KindRequest) (*rpc.ClipResponse, error) {
	if !req.Kind.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "invalid selection kind %d", req.Kind)
	}
	c, ok := s.m.Current(req.Kind)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no current clip for %s", req.Kind)
	}
	return &rpc.ClipResponse{Clip: c}, nil
}

// Watch implements HistoryService.Watch.
func (s *Service) Watch(_ *rpc.Empty, stream grpc.ServerStreamingServer[rpc.WatchEvent]) error {
	ctx := stream.Context()
	id := fmt.Sprintf("%s/watch/%d", addrFromCtx(ctx), s.watchSeq.Add(1))
	w := hub.NewChan(id, 16)

	s.h.Register(w)
	defer s.h.Unregister(w)

	slog.Info("watch started", "watcher", id)
	defer slog.Info("watch ended", "watcher", id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case ev := <-w.C:
			if err := stream.Send(&rpc.WatchEvent{Clip: ev.Clip, Inserted: ev.Inserted}); err != nil {
				return err
			}
		}
	}
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, manager.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, manager.ErrEmptyData),
		errors.Is(err, manager.ErrInvalidKind),
		errors.Is(err, monitor.ErrInvalidKind):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, monitor.ErrDisabled),
		errors.Is(err, selection.ErrUnavailable),
		errors.Is(err, monitor.ErrClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
