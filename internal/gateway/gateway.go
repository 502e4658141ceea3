// Package gateway serves a JSON view of HistoryService over HTTP/1.1. It
// calls the service in-process, the way a generated grpc-gateway handler
// registered with RegisterXHandlerServer would.
package gateway

import (
	"context"
	"io"
	"net/http"
	"strconv"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/rpc"
)

// maxInsertBody bounds the payload accepted by POST /v1/clips.
const maxInsertBody = 16 << 20

type gateway struct {
	srv       rpc.HistoryServer
	mux       *gwruntime.ServeMux
	marshaler gwruntime.Marshaler
}

// New returns a ServeMux exposing srv:
//
//	GET    /v1/clips                    list
//	POST   /v1/clips?kind=              insert the request body
//	DELETE /v1/clips                    clear
//	GET    /v1/clips/{id}               get
//	DELETE /v1/clips/{id}               delete
//	POST   /v1/clips/{id}/update        republish on the clipboard
//	POST   /v1/clips/{id}/mark?kind=    republish on kind
//	GET    /v1/current/{kind}           current clip of kind
//	GET    /v1/length                   history length
//	GET    /v1/monitor/{kind}           monitor state
//	POST   /v1/monitor/{kind}/enable
//	POST   /v1/monitor/{kind}/disable
func New(srv rpc.HistoryServer) (*gwruntime.ServeMux, error) {
	marshaler := &gwruntime.JSONBuiltin{}
	g := &gateway{
		srv:       srv,
		mux:       gwruntime.NewServeMux(gwruntime.WithMarshalerOption(gwruntime.MIMEWildcard, marshaler)),
		marshaler: marshaler,
	}

	routes := []struct {
		method, path string
		h            gwruntime.HandlerFunc
	}{
		{http.MethodGet, "/v1/clips", g.list},
		{http.MethodPost, "/v1/clips", g.insert},
		{http.MethodDelete, "/v1/clips", g.clear},
		{http.MethodGet, "/v1/clips/{id}", g.get},
		{http.MethodDelete, "/v1/clips/{id}", g.delete},
		{http.MethodPost, "/v1/clips/{id}/update", g.update},
		{http.MethodPost, "/v1/clips/{id}/mark", g.mark},
		{http.MethodGet, "/v1/current/{kind}", g.current},
		{http.MethodGet, "/v1/length", g.length},
		{http.MethodGet, "/v1/monitor/{kind}", g.monitorState},
		{http.MethodPost, "/v1/monitor/{kind}/enable", g.enable},
		{http.MethodPost, "/v1/monitor/{kind}/disable", g.disable},
	}
	for _, rt := range routes {
		if err := g.mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return nil, err
		}
	}
	return g.mux, nil
}

func (g *gateway) reply(w http.ResponseWriter, r *http.Request, resp any, err error) {
	if err != nil {
		gwruntime.HTTPError(r.Context(), g.mux, g.marshaler, w, r, err)
		return
	}
	b, err := g.marshaler.Marshal(resp)
	if err != nil {
		gwruntime.HTTPError(r.Context(), g.mux, g.marshaler, w, r, status.Error(codes.Internal, err.Error()))
		return
	}
	w.Header().Set("Content-Type", g.marshaler.ContentType(resp))
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (g *gateway) fail(w http.ResponseWriter, r *http.Request, err error) {
	gwruntime.HTTPError(r.Context(), g.mux, g.marshaler, w, r, err)
}

func parseID(params map[string]string) (uint64, error) {
	id, err := strconv.ParseUint(params["id"], 10, 64)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "invalid clip id %q", params["id"])
	}
	return id, nil
}

func parseKind(s string) (clip.Kind, error) {
	k, err := clip.ParseKind(s)
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, err.Error())
	}
	return k, nil
}

func (g *gateway) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.srv.List(r.Context(), &rpc.Empty{})
	g.reply(w, r, resp, err)
}

func (g *gateway) insert(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	kind, err := parseKind(r.URL.Query().Get("kind"))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxInsertBody))
	if err != nil {
		g.fail(w, r, status.Error(codes.InvalidArgument, err.Error()))
		return
	}
	resp, err := g.srv.Insert(r.Context(), &rpc.InsertRequest{Kind: kind, Data: data})
	g.reply(w, r, resp, err)
}

func (g *gateway) clear(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.srv.Clear(r.Context(), &rpc.Empty{})
	g.reply(w, r, resp, err)
}

func (g *gateway) withID(w http.ResponseWriter, r *http.Request, params map[string]string, call func(context.Context, uint64) (any, error)) {
	id, err := parseID(params)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	resp, err := call(r.Context(), id)
	g.reply(w, r, resp, err)
}

func (g *gateway) get(w http.ResponseWriter, r *http.Request, params map[string]string) {
	g.withID(w, r, params, func(ctx context.Context, id uint64) (any, error) {
		return g.srv.Get(ctx, &rpc.IDRequest{ID: id})
	})
}

func (g *gateway) delete(w http.ResponseWriter, r *http.Request, params map[string]string) {
	g.withID(w, r, params, func(ctx context.Context, id uint64) (any, error) {
		return g.srv.Delete(ctx, &rpc.IDRequest{ID: id})
	})
}

func (g *gateway) update(w http.ResponseWriter, r *http.Request, params map[string]string) {
	g.withID(w, r, params, func(ctx context.Context, id uint64) (any, error) {
		return g.srv.Update(ctx, &rpc.IDRequest{ID: id})
	})
}

func (g *gateway) mark(w http.ResponseWriter, r *http.Request, params map[string]string) {
	kind, err := parseKind(r.URL.Query().Get("kind"))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.withID(w, r, params, func(ctx context.Context, id uint64) (any, error) {
		return g.srv.Mark(ctx, &rpc.MarkRequest{ID: id, Kind: kind})
	})
}

func (g *gateway) length(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.srv.Length(r.Context(), &rpc.Empty{})
	g.reply(w, r, resp, err)
}

func (g *gateway) withKind(w http.ResponseWriter, r *http.Request, params map[string]string, call func(context.Context, *rpc.KindRequest) (any, error)) {
	kind, err := parseKind(params["kind"])
	if err != nil {
		g.fail(w, r, err)
		return
	}
	resp, err := call(r.Context(), &rpc.KindRequest{Kind: kind})
	g.reply(w, r, resp, err)
}

func (g *gateway) current(w http.ResponseWriter, r *http.Request, params map[string]string) {
	g.withKind(w, r, params, func(ctx context.Context, req *rpc.KindRequest) (any, error) {
		return g.srv.Current(ctx, req)
	})
}

func (g *gateway) monitorState(w http.ResponseWriter, r *http.Request, params map[string]string) {
	g.withKind(w, r, params, func(ctx context.Context, req *rpc.KindRequest) (any, error) {
		return g.srv.MonitorState(ctx, req)
	})
}

func (g *gateway) enable(w http.ResponseWriter, r *http.Request, params map[string]string) {
	g.withKind(w, r, params, func(ctx context.Context, req *rpc.KindRequest) (any, error) {
		return g.srv.EnableMonitor(ctx, req)
	})
}

func (g *gateway) disable(w http.ResponseWriter, r *http.Request, params map[string]string) {
	g.withKind(w, r, params, func(ctx context.Context, req *rpc.KindRequest) (any, error) {
		return g.srv.DisableMonitor(ctx, req)
	})
}
