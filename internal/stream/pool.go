package stream

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Pool hands out at most one live client per connection identity, so
// repeated lookups share a single venue connection instead of dialing
// a new one each time. Identities are case-insensitive and
// whitespace-trimmed.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[string]*Client)}
}

func normalizeIdentity(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Acquire returns the live client for the identity, building and
// connecting one via build on first use. A previously closed client is
// replaced rather than resurrected. Concurrent callers for the same
// identity are serialized, so at most one connection per identity ever
// exists.
func (p *Pool) Acquire(ctx context.Context, identity string, build func() (*Client, error)) (*Client, error) {
	key := normalizeIdentity(identity)

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok && c.Running() {
		return c, nil
	}

	c, err := build()
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	p.clients[key] = c
	log.Debug().Str("identity", key).Msg("stream client pooled")
	return c, nil
}

// Get returns the pooled client for the identity, if any.
func (p *Pool) Get(identity string) (*Client, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[normalizeIdentity(identity)]
	return c, ok
}

// Release closes and removes the client for the identity. Callers
// still holding the client must stop using it.
func (p *Pool) Release(identity string) error {
	key := normalizeIdentity(identity)

	p.mu.Lock()
	c, ok := p.clients[key]
	delete(p.clients, key)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return c.Close()
}

// CloseAll tears down every pooled client. The pool is reusable
// afterwards.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[string]*Client)
	p.mu.Unlock()

	for id, c := range clients {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("identity", id).Msg("close pooled client")
		}
	}
}
