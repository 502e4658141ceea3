package rpc

import (
	"context"

	"google.golang.org/grpc"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/codec"
)

// Client is a typed HistoryService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append(opts, grpc.CallContentSubtype(codec.Name))
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

// List returns the history, most recent first.
func (c *Client) List(ctx context.Context, opts ...grpc.CallOption) ([]clip.Clip, error) {
	var out ListResponse
	if err := c.invoke(ctx, "List", &Empty{}, &out, opts...); err != nil {
		return nil, err
	}
	return out.Clips, nil
}

func (c *Client) Get(ctx context.Context, id uint64, opts ...grpc.CallOption) (clip.Clip, error) {
	var out ClipResponse
	err := c.invoke(ctx, "Get", &IDRequest{ID: id}, &out, opts...)
	return out.Clip, err
}

// Update republishes a clip on the clipboard selection.
func (c *Client) Update(ctx context.Context, id uint64, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "Update", &IDRequest{ID: id}, &Empty{}, opts...)
}

func (c *Client) Mark(ctx context.Context, id uint64, kind clip.Kind, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "Mark", &MarkRequest{ID: id, Kind: kind}, &Empty{}, opts...)
}

func (c *Client) Delete(ctx context.Context, id uint64, opts ...grpc.CallOption) (bool, error) {
	var out DeleteResponse
	err := c.invoke(ctx, "Delete", &IDRequest{ID: id}, &out, opts...)
	return out.Deleted, err
}

func (c *Client) Clear(ctx context.Context, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "Clear", &Empty{}, &Empty{}, opts...)
}

func (c *Client) Length(ctx context.Context, opts ...grpc.CallOption) (int, error) {
	var out LengthResponse
	err := c.invoke(ctx, "Length", &Empty{}, &out, opts...)
	return int(out.Length), err
}

func (c *Client) EnableMonitor(ctx context.Context, kind clip.Kind, opts ...grpc.CallOption) (bool, error) {
	return c.monitorCall(ctx, "EnableMonitor", kind, opts)
}

func (c *Client) DisableMonitor(ctx context.Context, kind clip.Kind, opts ...grpc.CallOption) (bool, error) {
	return c.monitorCall(ctx, "DisableMonitor", kind, opts)
}

// MonitorState reports whether kind is monitored.
func (c *Client) MonitorState(ctx context.Context, kind clip.Kind, opts ...grpc.CallOption) (bool, error) {
	return c.monitorCall(ctx, "MonitorState", kind, opts)
}

func (c *Client) monitorCall(ctx context.Context, method string, kind clip.Kind, opts []grpc.CallOption) (bool, error) {
	var out MonitorStateResponse
	err := c.invoke(ctx, method, &KindRequest{Kind: kind}, &out, opts...)
	return out.Enabled, err
}

// Insert records data as a clip of kind and publishes it there.
func (c *Client) Insert(ctx context.Context, kind clip.Kind, data []byte, opts ...grpc.CallOption) (id uint64, inserted bool, err error) {
	var out InsertResponse
	err = c.invoke(ctx, "Insert", &InsertRequest{Kind: kind, Data: data}, &out, opts...)
	return out.ID, out.Inserted, err
}

// Current returns the clip currently held by kind.
func (c *Client) Current(ctx context.Context, kind clip.Kind, opts ...grpc.CallOption) (clip.Clip, error) {
	var out ClipResponse
	err := c.invoke(ctx, "Current", &KindRequest{Kind: kind}, &out, opts...)
	return out.Clip, err
}

// Watch streams every clip recorded from now on.
func (c *Client) Watch(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[WatchEvent], error) {
	opts = append(opts, grpc.CallContentSubtype(codec.Name))
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("Watch"), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Empty, WatchEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
