package stream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrTransportClosed reports a read or write on a closed transport.
	ErrTransportClosed = errors.New("transport closed")
	// ErrReceiveTimeout reports that no frame arrived within the
	// receive deadline.
	ErrReceiveTimeout = errors.New("receive timed out")
)

// Transport is a single bidirectional message channel. A Client owns at
// most one live Transport at a time.
type Transport interface {
	Send(data []byte) error
	// Receive blocks for the next text frame. timeout 0 waits forever.
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

// DialOptions carries per-dial settings for a Dialer.
type DialOptions struct {
	HandshakeTimeout time.Duration
	Header           http.Header
	// OnPong fires for every websocket-level ping or pong control
	// frame, both of which prove the peer is alive.
	OnPong func()
}

// Dialer opens a Transport. Swappable so tests can script one.
type Dialer func(ctx context.Context, url string, opts DialOptions) (Transport, error)

type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// DialWebSocket is the production Dialer, backed by gorilla/websocket.
func DialWebSocket(ctx context.Context, url string, opts DialOptions) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, err
	}

	t := &wsTransport{conn: conn}

	// Server-initiated pings must be answered or the venue drops us.
	// Both directions of control traffic reset liveness.
	conn.SetPingHandler(func(data string) error {
		if opts.OnPong != nil {
			opts.OnPong()
		}
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		if opts.OnPong != nil {
			opts.OnPong()
		}
		return nil
	})

	return t, nil
}

func (t *wsTransport) Send(data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.mu.Unlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Receive(timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}

	_, data, err := t.conn.ReadMessage()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, ErrReceiveTimeout
		}
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return nil, ErrTransportClosed
		}
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return t.conn.Close()
}
