// Package supervisor assembles the daemon: it loads the history, opens
// the selections, starts the pipeline and the RPC listeners, and tears
// everything down again on a shutdown request.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/config"
	"go.klb.dev/clipstash/internal/gateway"
	"go.klb.dev/clipstash/internal/grpcservice"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
	"go.klb.dev/clipstash/internal/ipc"
	"go.klb.dev/clipstash/internal/manager"
	"go.klb.dev/clipstash/internal/monitor"
	"go.klb.dev/clipstash/internal/pipeline"
	"go.klb.dev/clipstash/internal/rpc"
	"go.klb.dev/clipstash/internal/selection"
)

// ErrBind is returned by Start when the RPC address cannot be bound.
var ErrBind = errors.New("supervisor: cannot bind RPC address")

// ShutdownGrace bounds how long in-flight RPCs may take once shutdown
// has begun.
const ShutdownGrace = 5 * time.Second

type ctlMsg int

const ctlShutdown ctlMsg = iota

// Option configures a Daemon.
type Option func(*Daemon)

// WithOpener replaces the windowing-system backends, e.g. with
// selection.Memory in tests.
func WithOpener(open monitor.Opener) Option {
	return func(d *Daemon) { d.opener = open }
}

// WithVersion sets the version reported in the startup log.
func WithVersion(v string) Option {
	return func(d *Daemon) { d.version = v }
}

// WithoutSignals leaves SIGINT and SIGTERM to the caller.
func WithoutSignals() Option {
	return func(d *Daemon) { d.noSignals = true }
}

// Daemon owns the canonical references to every component.
type Daemon struct {
	cfg       *config.Daemon
	opener    monitor.Opener
	version   string
	noSignals bool

	store  history.Store
	mgr    *manager.Manager
	mon    *monitor.Monitor
	hub    *hub.Hub
	worker *pipeline.Worker
	svc    *grpcservice.Service
	health *health.Server

	grpcSrv *grpc.Server
	httpSrv *http.Server
	tcpLn   net.Listener
	unixLn  net.Listener

	ctl      chan ctlMsg
	sigCh    chan os.Signal
	cancel   context.CancelFunc
	group    errgroup.Group
	stopping chan struct{}
	stopOnce sync.Once
}

// New returns a Daemon for cfg. Nothing is started until Start.
func New(cfg *config.Daemon, opts ...Option) *Daemon {
	d := &Daemon{
		cfg:      cfg,
		version:  "dev",
		ctl:      make(chan ctlMsg, 1),
		stopping: make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	if d.opener == nil {
		mode, _ := selection.ParseMode(cfg.Monitor.Backend)
		interval := cfg.Monitor.PollInterval
		d.opener = func(k clip.Kind) (selection.Backend, error) {
			return selection.Open(k, mode, interval)
		}
	}
	return d
}

// Run starts the daemon and blocks until it has shut down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	return d.Wait()
}

// Start builds every component and starts serving. Cancelling ctx is
// equivalent to calling Shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	d.openHistory()

	clips, err := d.store.Load()
	if err != nil {
		slog.Warn("history unreadable, starting empty", "path", d.store.Path(), "err", err)
		clips = nil
	}
	d.mgr, err = manager.New(d.cfg.MaxHistory)
	if err != nil {
		d.store.Close()
		return err
	}
	d.mgr.Import(clips)
	slog.Info("history loaded", "path", d.store.Path(), "clips", d.mgr.Len(), "capacity", d.mgr.Capacity())

	d.mon, err = monitor.New(monitor.Options{
		LoadCurrent:     d.cfg.Monitor.LoadCurrent,
		EnableClipboard: d.cfg.Monitor.EnableClipboard,
		EnablePrimary:   d.cfg.Monitor.EnablePrimary,
		FilterMinSize:   d.cfg.Monitor.FilterMinSize,
		IgnoreWindow:    d.cfg.Monitor.IgnoreWindow,
	}, d.opener)
	if err != nil {
		d.store.Close()
		return err
	}

	if err := d.listen(); err != nil {
		d.mon.Close()
		d.store.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	events, err := d.mon.Subscribe(runCtx)
	if err != nil {
		cancel()
		d.closeListeners()
		d.mon.Close()
		d.store.Close()
		return err
	}

	d.hub = hub.New()
	d.worker = pipeline.New(d.mgr, d.mon, d.store, d.hub)
	d.svc = grpcservice.New(d.mgr, d.mon, d.worker, d.hub)
	d.health = health.NewServer()
	d.grpcSrv = d.newGRPCServer()

	slog.Info("clipstash daemon starting",
		"version", d.version,
		"addr", d.tcpLn.Addr().String(),
		"socket", d.socketPath(),
		"http", d.cfg.GRPC.HTTP,
		"clipboard", d.mon.BackendName(clip.KindClipboard),
		"primary", d.mon.BackendName(clip.KindPrimary),
	)

	d.group.Go(func() error {
		err := d.worker.Run(runCtx, events)
		if errors.Is(err, pipeline.ErrStreamClosed) {
			slog.Warn("selection monitor disconnected, shutting down")
			d.Shutdown()
			return nil
		}
		return err
	})
	d.serve()

	if !d.noSignals {
		d.sigCh = make(chan os.Signal, 1)
		signal.Notify(d.sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-d.sigCh:
				slog.Info("signal received", "signal", sig.String())
				d.Shutdown()
			case <-d.stopping:
			}
		}()
	}
	go func() {
		select {
		case <-ctx.Done():
			d.Shutdown()
		case <-d.stopping:
		}
	}()
	return nil
}

// openHistory opens the configured store, falling back to one that keeps
// nothing so the daemon still runs.
func (d *Daemon) openHistory() {
	driver, err := history.ParseDriver(d.cfg.HistoryDriver)
	if err == nil {
		d.store, err = history.Open(driver, d.cfg.HistoryFilePath)
	}
	if err != nil {
		slog.Warn("history store unavailable, history will not persist",
			"path", d.cfg.HistoryFilePath, "driver", d.cfg.HistoryDriver, "err", err)
		d.store = history.Discard
	}
}

func (d *Daemon) listen() error {
	addr := d.cfg.GRPC.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, addr, err)
	}
	d.tcpLn = ln

	if path := d.cfg.GRPC.Socket; path != "" {
		uln, err := ipc.Listen(path)
		if err != nil {
			slog.Warn("IPC socket unavailable", "path", path, "err", err)
		} else {
			d.unixLn = uln
		}
	}
	return nil
}

func (d *Daemon) newGRPCServer() *grpc.Server {
	var opts []grpc.ServerOption
	if idle := d.cfg.GRPC.IdleTimeout; idle > 0 {
		opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{MaxConnectionIdle: idle}))
	}
	srv := grpc.NewServer(opts...)
	rpc.RegisterHistoryServer(srv, d.svc)
	healthpb.RegisterHealthServer(srv, d.health)
	d.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	d.health.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

// serve starts the listeners. With HTTP enabled, gRPC and the JSON
// gateway share the TCP port through cmux.
func (d *Daemon) serve() {
	grpcLn := d.tcpLn
	if d.cfg.GRPC.HTTP {
		m := cmux.New(d.tcpLn)
		grpcLn = m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
		httpLn := m.Match(cmux.HTTP1Fast())

		mux, err := gateway.New(d.svc)
		if err != nil {
			slog.Error("HTTP gateway disabled", "err", err)
		} else {
			d.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			d.group.Go(func() error { return d.quiet(d.httpSrv.Serve(httpLn)) })
		}
		d.group.Go(func() error { return d.quiet(m.Serve()) })
	}
	d.group.Go(func() error { return d.quiet(d.grpcSrv.Serve(grpcLn)) })
	if d.unixLn != nil {
		d.group.Go(func() error { return d.quiet(d.grpcSrv.Serve(d.unixLn)) })
	}
}

// quiet drops the errors listeners return because shutdown closed them.
func (d *Daemon) quiet(err error) error {
	select {
	case <-d.stopping:
		return nil
	default:
	}
	if err == nil || errors.Is(err, grpc.ErrServerStopped) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	slog.Error("listener failed", "err", err)
	d.Shutdown()
	return err
}

// Shutdown asks the daemon to stop. It never blocks and may be called
// any number of times.
func (d *Daemon) Shutdown() {
	select {
	case d.ctl <- ctlShutdown:
	default:
	}
}

// Wait blocks until a shutdown request, stops every task and releases
// the history store and the selections.
func (d *Daemon) Wait() error {
	<-d.ctl
	d.stopOnce.Do(func() { close(d.stopping) })
	if d.sigCh != nil {
		signal.Stop(d.sigCh)
	}
	slog.Info("shutting down")

	// RPCs stop first so the pipeline's final snapshot includes their
	// changes.
	d.health.Shutdown()
	d.svc.Close()
	stopped := make(chan struct{})
	go func() {
		d.grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(ShutdownGrace):
		slog.Warn("RPC drain timed out, closing connections")
		d.grpcSrv.Stop()
	}
	if d.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
		if err := d.httpSrv.Shutdown(ctx); err != nil {
			d.httpSrv.Close()
		}
		cancel()
	}
	d.closeListeners()

	d.cancel()
	err := d.group.Wait()

	d.mon.Close()
	if cerr := d.store.Close(); cerr != nil {
		slog.Warn("close history store", "err", cerr)
	}
	saves, failures := d.worker.Stats()
	slog.Info("daemon stopped", "clips", d.mgr.Len(), "saves", saves, "save_failures", failures)
	return err
}

func (d *Daemon) closeListeners() {
	if d.tcpLn != nil {
		d.tcpLn.Close()
	}
	if d.unixLn != nil {
		d.unixLn.Close()
	}
}

// Addr returns the bound TCP address.
func (d *Daemon) Addr() net.Addr { return d.tcpLn.Addr() }

func (d *Daemon) socketPath() string {
	if d.unixLn == nil {
		return ""
	}
	return d.unixLn.Addr().String()
}
