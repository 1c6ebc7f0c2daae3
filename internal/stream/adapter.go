package stream

import "context"

// Kind classifies a decoded frame.
type Kind int

const (
	// KindIgnore marks acks, trade echoes and other frames that carry
	// nothing the cache needs.
	KindIgnore Kind = iota
	// KindData carries one or more topic updates.
	KindData
	// KindPong acknowledges a keep-alive ping.
	KindPong
)

// Update is a single cache mutation produced by decoding a frame. One
// venue frame may fan out into several updates (e.g. a position list).
type Update struct {
	Topic Topic
	Value any
}

// Decoded is the adapter's interpretation of one raw frame.
type Decoded struct {
	Kind    Kind
	Updates []Update
}

// Adapter supplies the venue-specific hooks consumed by Client. The
// core never branches on venue identity; everything idiosyncratic about
// a venue (ping policy, auth flow, message shape) lives behind this
// interface.
type Adapter interface {
	Name() string

	// URL is the websocket endpoint for this stream.
	URL() string

	// Options returns the venue's connection tuning.
	Options() Options

	// Decode interprets a raw frame. An error means the frame is
	// undecodable; it is logged and dropped without touching the
	// connection.
	Decode(raw []byte) (Decoded, error)

	// SubscribeFrames builds the wire messages that request the given
	// topics. It may return no frames for streams that auto-subscribe
	// on connect.
	SubscribeFrames(topics []Topic) ([][]byte, error)

	// UnsubscribeFrames builds the wire messages that drop the given
	// topics.
	UnsubscribeFrames(topics []Topic) ([][]byte, error)

	// PingFrame builds the keep-alive payload for one tick. nil means
	// send nothing this tick. It is never called when the venue's ping
	// interval is unset.
	PingFrame() []byte

	// Authenticate performs session-level auth over the stream. It is
	// invoked once per (re)connection, before resubscription, and is
	// also the adapter's hook for resetting any per-connection decode
	// state. Venues whose auth rides on the handshake header return
	// nil.
	Authenticate(ctx context.Context, t Transport) error
}
