// Package stream implements the venue-agnostic websocket client: one
// lifecycle state machine, receive loop, keep-alive task and
// reconnect/backoff loop shared by every venue adapter, plus a topic
// cache served to callers without touching the network.
package stream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrClientClosed reports an operation on a client after Close.
	// Close is terminal: a closed client never reconnects.
	ErrClientClosed = errors.New("stream client closed")
	// ErrBadURL is a configuration error, raised synchronously from
	// Connect and never retried.
	ErrBadURL = errors.New("invalid websocket url")
	// ErrWaitTimeout reports that WaitReady ran out of time. It is
	// scoped to the waiting caller; the connection is unaffected.
	ErrWaitTimeout = errors.New("timed out waiting for topic")
)

// Client maintains one persistent streaming connection to a venue. It
// re-issues every subscription after a drop, recovers silent half-open
// connections via receive timeouts, and rejects in-flight messages from
// superseded transports so a dying connection can never overwrite
// fresher data.
type Client struct {
	adapter Adapter
	opts    Options
	dial    Dialer
	log     zerolog.Logger

	// gen numbers successive transports. Every receive loop carries
	// the gen of the transport it reads; updates whose gen is no
	// longer current are discarded.
	gen atomic.Uint64

	mu        sync.Mutex
	state     ConnState
	running   bool
	transport Transport
	attempt   int
	subs      []Topic
	subSet    map[Topic]struct{}
	onState   func(ConnState)

	cacheMu sync.RWMutex
	cache   map[Topic]CachedValue
	waiters map[Topic][]chan struct{}

	lastPong atomic.Int64 // unix nanos

	// lifeCtx spans the client's lifetime; Close cancels it so a
	// reconnect blocked in dial or Authenticate unwinds promptly.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient builds a client around a venue adapter. The client is idle
// until Connect.
func NewClient(adapter Adapter) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		adapter:    adapter,
		opts:       adapter.Options().withDefaults(),
		dial:       DialWebSocket,
		log:        log.With().Str("venue", adapter.Name()).Logger(),
		state:      StateDisconnected,
		subSet:     make(map[Topic]struct{}),
		cache:      make(map[Topic]CachedValue),
		waiters:    make(map[Topic][]chan struct{}),
		lifeCtx:    ctx,
		lifeCancel: cancel,
		done:       make(chan struct{}),
	}
}

// SetStateListener registers a hook fired on every state transition.
// Must be called before Connect.
func (c *Client) SetStateListener(fn func(ConnState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Connect establishes the connection, authenticates if the venue
// requires it, and issues all current subscriptions. Dial failures are
// retried up to the configured attempt count with linear delay; an
// authentication failure on this first explicit connect is surfaced to
// the caller rather than absorbed into the reconnect loop. Calling
// Connect while not disconnected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	u, err := url.Parse(c.adapter.URL())
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("%w: %q", ErrBadURL, c.adapter.URL())
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < c.opts.ConnectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.abandonConnect()
				return ctx.Err()
			case <-c.done:
				return ErrClientClosed
			case <-time.After(c.opts.ConnectRetryDelay):
			}
		}

		tr, err := c.open(ctx)
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt+1).Msg("ws dial failed")
			lastErr = err
			continue
		}

		if err := c.establish(ctx, tr); err != nil {
			_ = tr.Close()
			c.abandonConnect()
			return fmt.Errorf("connect %s: %w", c.adapter.Name(), err)
		}
		return nil
	}

	c.abandonConnect()
	return fmt.Errorf("connect %s after %d attempts: %w", c.adapter.Name(), c.opts.ConnectAttempts, lastErr)
}

func (c *Client) abandonConnect() {
	c.mu.Lock()
	c.running = false
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

// open dials a new transport with the handshake bounded by the connect
// timeout.
func (c *Client) open(ctx context.Context) (Transport, error) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	return c.dial(dctx, c.adapter.URL(), DialOptions{
		HandshakeTimeout: c.opts.ConnectTimeout,
		Header:           c.opts.Header,
		OnPong: func() {
			c.lastPong.Store(time.Now().UnixNano())
		},
	})
}

// establish takes a freshly dialed transport through authentication and
// resubscription, then starts the per-transport loops and declares
// READY. On error the caller owns closing the transport.
func (c *Client) establish(ctx context.Context, tr Transport) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrClientClosed
	}
	gen := c.gen.Add(1)
	c.transport = tr
	c.setStateLocked(StateConnected)
	c.setStateLocked(StateAuthenticating)
	c.mu.Unlock()

	if err := c.adapter.Authenticate(ctx, tr); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	c.lastPong.Store(time.Now().UnixNano())

	if err := c.resubscribe(tr); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}

	c.mu.Lock()
	if !c.running || gen != c.gen.Load() {
		// Closed or superseded while authenticating.
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.setStateLocked(StateReady)
	c.attempt = 0
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveLoop(gen, tr)
	if c.opts.PingInterval > 0 {
		c.wg.Add(1)
		go c.keepAlive(gen, tr)
	}
	return nil
}

// resubscribe re-issues every tracked subscription on the given
// transport, in subscription order.
func (c *Client) resubscribe(tr Transport) error {
	c.mu.Lock()
	topics := make([]Topic, len(c.subs))
	copy(topics, c.subs)
	c.mu.Unlock()

	if len(topics) == 0 {
		return nil
	}

	frames, err := c.adapter.SubscribeFrames(topics)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := tr.Send(f); err != nil {
			return err
		}
	}
	c.log.Debug().Int("topics", len(topics)).Msg("subscriptions issued")
	return nil
}

// receiveLoop reads frames for the life of one transport generation.
// Any receive error, including a receive timeout on a half-open
// connection, tears the transport down and hands off to the reconnect
// loop.
func (c *Client) receiveLoop(gen uint64, tr Transport) {
	defer c.wg.Done()

	for {
		raw, err := tr.Receive(c.opts.ReceiveTimeout)
		if err != nil {
			if gen != c.gen.Load() || !c.Running() {
				return
			}
			if errors.Is(err, ErrReceiveTimeout) {
				c.log.Warn().Dur("receive_timeout", c.opts.ReceiveTimeout).Msg("no message within receive timeout, reconnecting")
			} else {
				c.log.Warn().Err(err).Msg("ws disconnected, reconnecting")
			}
			c.wg.Add(1)
			go c.reconnect(gen)
			return
		}

		dec, err := c.adapter.Decode(raw)
		if err != nil {
			// Undecodable frames are dropped; they never tear the
			// connection down.
			c.log.Debug().Err(err).Msg("undecodable message dropped")
			continue
		}

		switch dec.Kind {
		case KindPong:
			c.lastPong.Store(time.Now().UnixNano())
		case KindData:
			c.apply(gen, dec.Updates)
		}
	}
}

// apply writes decoded updates into the cache and wakes waiters,
// unless the producing transport has been superseded.
func (c *Client) apply(gen uint64, updates []Update) {
	if len(updates) == 0 {
		return
	}

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	// Re-check under the cache lock: reconnect bumps the generation
	// before dialing a replacement, so a stale loop cannot pass here
	// once a newer transport can produce data.
	if gen != c.gen.Load() {
		return
	}

	now := time.Now()
	for _, u := range updates {
		c.cache[u.Topic] = CachedValue{Value: u.Value, At: now}
		if ws := c.waiters[u.Topic]; len(ws) > 0 {
			for _, ch := range ws {
				close(ch)
			}
			delete(c.waiters, u.Topic)
		}
	}
}

// keepAlive runs only when the venue declares a ping interval. Each
// tick it asks the adapter for a ping frame (nil means this venue sends
// nothing this tick), then verifies an ack arrives within the grace
// period. Consecutive misses up to the limit force a reconnect even if
// the transport itself never reports a close.
func (c *Client) keepAlive(gen uint64, tr Transport) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		if gen != c.gen.Load() || !c.Running() {
			return
		}

		frame := c.adapter.PingFrame()
		if frame == nil {
			continue
		}

		sentAt := time.Now()
		if err := tr.Send(frame); err != nil {
			c.log.Warn().Err(err).Msg("ping send failed, reconnecting")
			c.wg.Add(1)
			go c.reconnect(gen)
			return
		}

		select {
		case <-c.done:
			return
		case <-time.After(c.opts.PongWait):
		}

		if c.lastPong.Load() >= sentAt.UnixNano() {
			failures = 0
			continue
		}
		failures++
		c.log.Warn().Int("failures", failures).Int("limit", c.opts.PingFailLimit).Msg("pong missed")
		if failures >= c.opts.PingFailLimit {
			c.log.Warn().Msg("ping failure limit reached, forcing reconnect")
			c.wg.Add(1)
			go c.reconnect(gen)
			return
		}
	}
}

// reconnect supersedes the failed transport generation and re-dials
// with doubling, jittered, capped backoff until READY or Close. The
// attempt counter resets only on READY. Auth failures here are
// retryable: the venue may be flapping, and only the first explicit
// Connect surfaces them.
func (c *Client) reconnect(fromGen uint64) {
	defer c.wg.Done()

	c.mu.Lock()
	if fromGen != c.gen.Load() || !c.running {
		// Another loop already superseded this transport.
		c.mu.Unlock()
		return
	}
	c.gen.Add(1)
	if c.transport != nil {
		_ = c.transport.Close()
		c.transport = nil
	}
	c.setStateLocked(StateReconnecting)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if !c.running {
			c.mu.Unlock()
			return
		}
		attempt := c.attempt
		c.attempt++
		c.mu.Unlock()

		delay := jittered(backoffDelay(c.opts.ReconnectMin, c.opts.ReconnectMax, attempt), c.opts.ReconnectMax)
		c.log.Warn().Int("attempt", attempt+1).Dur("delay", delay).Msg("reconnecting")

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		tr, err := c.open(c.lifeCtx)
		if err != nil {
			if c.lifeCtx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Msg("reconnect dial failed")
			continue
		}
		if err := c.establish(c.lifeCtx, tr); err != nil {
			_ = tr.Close()
			if c.lifeCtx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Msg("reconnect setup failed")
			continue
		}

		c.log.Info().Msg("ws reconnected")
		return
	}
}

// backoffDelay doubles from min per attempt, capped at max.
func backoffDelay(min, max time.Duration, attempt int) time.Duration {
	d := min
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

// jittered adds up to 25% random jitter so a fleet of clients does not
// resynchronize against the venue, still capped at max.
func jittered(d, max time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	d += time.Duration(rand.Int63n(int64(d)/4 + 1))
	if d > max {
		return max
	}
	return d
}

// Subscribe tracks a topic and, when READY, requests it immediately;
// otherwise it is picked up by the next (re)connect. Duplicate
// subscriptions are no-ops.
func (c *Client) Subscribe(topic Topic) error {
	c.mu.Lock()
	if _, ok := c.subSet[topic]; ok {
		c.mu.Unlock()
		return nil
	}
	c.subSet[topic] = struct{}{}
	c.subs = append(c.subs, topic)
	tr := c.transport
	ready := c.state == StateReady
	c.mu.Unlock()

	if !ready || tr == nil {
		return nil
	}
	frames, err := c.adapter.SubscribeFrames([]Topic{topic})
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := tr.Send(f); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe stops tracking a topic so it is not re-issued after a
// reconnect, drops its cached value, and when READY tells the venue.
func (c *Client) Unsubscribe(topic Topic) error {
	c.mu.Lock()
	if _, ok := c.subSet[topic]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.subSet, topic)
	for i, t := range c.subs {
		if t == topic {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	tr := c.transport
	ready := c.state == StateReady
	c.mu.Unlock()

	c.cacheMu.Lock()
	delete(c.cache, topic)
	c.cacheMu.Unlock()

	if !ready || tr == nil {
		return nil
	}
	frames, err := c.adapter.UnsubscribeFrames([]Topic{topic})
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := tr.Send(f); err != nil {
			return err
		}
	}
	return nil
}

// GetCached returns the last known value for a topic. It never blocks
// and never touches the network; an unknown topic reports ok=false.
func (c *Client) GetCached(topic Topic) (CachedValue, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	v, ok := c.cache[topic]
	return v, ok
}

// WaitReady suspends the caller until the topic has a cached value or
// the timeout elapses. A value already in the cache returns
// immediately. The timeout is surfaced only to this caller; the
// connection keeps running.
func (c *Client) WaitReady(ctx context.Context, topic Topic, timeout time.Duration) (any, error) {
	ch := make(chan struct{})

	c.cacheMu.Lock()
	if v, ok := c.cache[topic]; ok {
		c.cacheMu.Unlock()
		return v.Value, nil
	}
	c.waiters[topic] = append(c.waiters[topic], ch)
	c.cacheMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		v, _ := c.GetCached(topic)
		return v.Value, nil
	case <-timer.C:
		c.dropWaiter(topic, ch)
		return nil, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, topic, timeout)
	case <-ctx.Done():
		c.dropWaiter(topic, ch)
		return nil, ctx.Err()
	case <-c.done:
		c.dropWaiter(topic, ch)
		return nil, ErrClientClosed
	}
}

func (c *Client) dropWaiter(topic Topic, ch chan struct{}) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	ws := c.waiters[topic]
	for i, w := range ws {
		if w == ch {
			c.waiters[topic] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(c.waiters[topic]) == 0 {
		delete(c.waiters, topic)
	}
}

// Subscriptions returns the current topic list in subscription order.
func (c *Client) Subscriptions() []Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Topic, len(c.subs))
	copy(out, c.subs)
	return out
}

// State reports the current lifecycle state, for diagnostics.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts reports the reconnect attempt counter, which resets to zero
// on each READY transition.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Running reports whether the client still intends to stay connected.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Close tears the client down permanently: the reconnect loop stops,
// in-progress backoff sleeps are cancelled, and waiters are released.
// Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	c.running = false
	c.gen.Add(1) // supersede any in-flight transport
	tr := c.transport
	c.transport = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })
	c.lifeCancel()

	if tr != nil {
		_ = tr.Close()
	}
	c.wg.Wait()
	return nil
}

func (c *Client) setStateLocked(s ConnState) {
	if c.state == s {
		return
	}
	c.state = s
	if c.onState != nil {
		fn := c.onState
		go fn(s)
	}
}
