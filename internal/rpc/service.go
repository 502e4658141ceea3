// Package rpc defines the clipstash.v1.HistoryService gRPC service. The
// service descriptor is written by hand and messages are plain structs
// carried by the CBOR codec in internal/codec.
package rpc

import (
	"context"

	"google.golang.org/grpc"

	_ "go.klb.dev/clipstash/internal/codec"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "clipstash.v1.HistoryService"

// HistoryServer is implemented by the daemon.
type HistoryServer interface {
	List(context.Context, *Empty) (*ListResponse, error)
	Get(context.Context, *IDRequest) (*ClipResponse, error)
	// Update makes the clip current for the clipboard selection and
	// publishes it there.
	Update(context.Context, *IDRequest) (*Empty, error)
	Mark(context.Context, *MarkRequest) (*Empty, error)
	Delete(context.Context, *IDRequest) (*DeleteResponse, error)
	Clear(context.Context, *Empty) (*Empty, error)
	Length(context.Context, *Empty) (*LengthResponse, error)
	EnableMonitor(context.Context, *KindRequest) (*MonitorStateResponse, error)
	DisableMonitor(context.Context, *KindRequest) (*MonitorStateResponse, error)
	MonitorState(context.Context, *KindRequest) (*MonitorStateResponse, error)
	Insert(context.Context, *InsertRequest) (*InsertResponse, error)
	Current(context.Context, *KindRequest) (*ClipResponse, error)
	Watch(*Empty, grpc.ServerStreamingServer[WatchEvent]) error
}

// RegisterHistoryServer registers srv with s.
func RegisterHistoryServer(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(HistoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(HistoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(HistoryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(HistoryServer).Watch(in, &grpc.GenericServerStream[Empty, WatchEvent]{ServerStream: stream})
}

// ServiceDesc describes HistoryService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("List", HistoryServer.List),
		unary("Get", HistoryServer.Get),
		unary("Update", HistoryServer.Update),
		unary("Mark", HistoryServer.Mark),
		unary("Delete", HistoryServer.Delete),
		unary("Clear", HistoryServer.Clear),
		unary("Length", HistoryServer.Length),
		unary("EnableMonitor", HistoryServer.EnableMonitor),
		unary("DisableMonitor", HistoryServer.DisableMonitor),
		unary("MonitorState", HistoryServer.MonitorState),
		unary("Insert", HistoryServer.Insert),
		unary("Current", HistoryServer.Current),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "clipstash/v1/history",
}
