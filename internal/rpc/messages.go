package rpc

import "go.klb.dev/clipstash/internal/clip"

// Empty is the request or response of calls that carry no data.
type Empty struct{}

// IDRequest names one clip.
type IDRequest struct {
	ID uint64 `cbor:"id" json:"id"`
}

// KindRequest names one selection.
type KindRequest struct {
	Kind clip.Kind `cbor:"kind" json:"kind"`
}

// MarkRequest makes a clip current for a selection.
type MarkRequest struct {
	ID   uint64    `cbor:"id" json:"id"`
	Kind clip.Kind `cbor:"kind" json:"kind"`
}

// InsertRequest records data as if it had been observed on Kind.
type InsertRequest struct {
	Kind clip.Kind `cbor:"kind" json:"kind"`
	Data []byte    `cbor:"data" json:"data"`
}

type InsertResponse struct {
	ID       uint64 `cbor:"id" json:"id"`
	Inserted bool   `cbor:"inserted" json:"inserted"`
}

type ListResponse struct {
	Clips []clip.Clip `cbor:"clips" json:"clips"`
}

type ClipResponse struct {
	Clip clip.Clip `cbor:"clip" json:"clip"`
}

type DeleteResponse struct {
	Deleted bool `cbor:"deleted" json:"deleted"`
}

type LengthResponse struct {
	Length uint64 `cbor:"length" json:"length"`
}

// MonitorStateResponse reports the monitoring state of one selection.
type MonitorStateResponse struct {
	Kind    clip.Kind `cbor:"kind" json:"kind"`
	Enabled bool      `cbor:"enabled" json:"enabled"`
}

// WatchEvent is streamed to Watch callers for every recorded clip.
type WatchEvent struct {
	Clip     clip.Clip `cbor:"clip" json:"clip"`
	Inserted bool      `cbor:"inserted" json:"inserted"`
}
