package stream

import (
	"net/http"
	"time"
)

// Options holds per-venue connection tuning. The zero value of
// PingInterval disables the keep-alive task entirely: some venues sever
// the connection if the client ever sends a ping, so "disabled" must
// mean no task and no frames, not an idle timer.
type Options struct {
	// ConnectTimeout bounds the websocket handshake. Default 10s.
	ConnectTimeout time.Duration

	// PingInterval is how often the keep-alive task asks the adapter
	// for a ping frame. 0 = keep-alive task never starts.
	PingInterval time.Duration

	// PongWait is the grace period after a ping in which an ack must
	// arrive before the attempt counts as a failure. Default 10s.
	PongWait time.Duration

	// PingFailLimit is how many consecutive missed pongs force a
	// reconnect. Default 2.
	PingFailLimit int

	// ReceiveTimeout reconnects if no message arrives for this long,
	// which recovers from half-open connections that never deliver a
	// close frame. 0 = wait forever.
	ReceiveTimeout time.Duration

	// ReconnectMin / ReconnectMax bound the backoff delay. The delay
	// doubles per failed attempt with jitter. Defaults 500ms / 10s.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// ConnectAttempts is the maximum number of dial attempts for the
	// first explicit Connect, with ConnectRetryDelay linear spacing.
	// Defaults 3 / 1s.
	ConnectAttempts   int
	ConnectRetryDelay time.Duration

	// Header is sent with the websocket handshake (e.g. API-key auth).
	Header http.Header
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 10 * time.Second
	}
	if o.PingFailLimit <= 0 {
		o.PingFailLimit = 2
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = 500 * time.Millisecond
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = 10 * time.Second
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = 3
	}
	if o.ConnectRetryDelay <= 0 {
		o.ConnectRetryDelay = time.Second
	}
	return o
}
