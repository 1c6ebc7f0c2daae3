package storage

import (
	"context"
	"errors"
	"sync"

	"uniperp/internal/application/port"
)

// ErrNotFound is returned by lookups that matched nothing, regardless
// of backing store.
var ErrNotFound = errors.New("storage: not found")

type markKey struct{ venue, symbol string }

type markEntry struct {
	price,
	funding float64
	ts int64
}

type posEntry struct {
	size, entry float64
	ts          int64
}

// Memory is an in-memory repository. It backs tests and runs where no
// store is enabled, so the persistence path is always exercisable.
type Memory struct {
	mu        sync.Mutex
	marks     map[markKey]markEntry
	positions map[markKey]posEntry
	snapshots []string
	events    []string
}

func NewMemory() *Memory {
	return &Memory{
		marks:     make(map[markKey]markEntry),
		positions: make(map[markKey]posEntry),
	}
}

func (m *Memory) UpsertMarkPrice(ctx context.Context, venue, symbol string, price, fundingRate float64, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[markKey{venue, symbol}] = markEntry{price: price, funding: fundingRate, ts: ts}
	return nil
}

func (m *Memory) GetMarkPrice(ctx context.Context, venue, symbol string) (float64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.marks[markKey{venue, symbol}]
	if !ok {
		return 0, 0, ErrNotFound
	}
	return e.price, e.ts, nil
}

func (m *Memory) UpsertPosition(ctx context.Context, venue, symbol string, size, entryPrice float64, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[markKey{venue, symbol}] = posEntry{size: size, entry: entryPrice, ts: ts}
	return nil
}

func (m *Memory) GetPosition(ctx context.Context, venue, symbol string) (float64, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.positions[markKey{venue, symbol}]
	if !ok {
		return 0, 0, ErrNotFound
	}
	return e.size, e.entry, nil
}

func (m *Memory) ListPositions(ctx context.Context) ([]map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(m.positions))
	for k, e := range m.positions {
		out = append(out, map[string]interface{}{
			"venue":      k.venue,
			"symbol":     k.symbol,
			"size":       e.size,
			"entryPrice": e.entry,
			"ts_ms":      e.ts,
		})
	}
	return out, nil
}

func (m *Memory) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, payload)
	return nil
}

func (m *Memory) InsertConnEvent(ctx context.Context, ts int64, venue, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, venue+":"+state)
	return nil
}

// SnapshotCount reports how many snapshots were stored. Test helper.
func (m *Memory) SnapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// ConnEvents returns the recorded venue:state transitions. Test helper.
func (m *Memory) ConnEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Memory) Close() error { return nil }

var _ port.Repository = (*Memory)(nil)
