package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"uniperp/internal/application/port"
	"uniperp/internal/infrastructure/storage"
)

// Repo keeps hot state in Redis: latest mark price and position per
// venue+symbol in hashes, and stream lifecycle events on a stream plus
// pub/sub for live consumers. Snapshots are not stored here; that is
// the SQL stores' job.
type Repo struct {
	rdb          *redis.Client
	prefix       string
	ttl          time.Duration
	keyMarks     string // prefix + ":marks"
	keyPositions string // prefix + ":positions"
	eventStream  string
	eventChan    string
}

type markEntry struct {
	Venue       string  `json:"venue"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	FundingRate float64 `json:"funding_rate"`
	Ts          int64   `json:"ts"`
}

type positionEntry struct {
	Venue      string  `json:"venue"`
	Symbol     string  `json:"symbol"`
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entry_price"`
	Ts         int64   `json:"ts"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, eventStream string) *Repo {
	if strings.TrimSpace(eventStream) == "" {
		eventStream = prefix + ":events"
	}
	return &Repo{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          ttl,
		keyMarks:     prefix + ":marks",
		keyPositions: prefix + ":positions",
		eventStream:  eventStream,
		eventChan:    eventStream + ":pub",
	}
}

func field(venue, symbol string) string {
	return fmt.Sprintf("%s:%s", venue, symbol)
}

func (r *Repo) UpsertMarkPrice(ctx context.Context, venue, symbol string, price, fundingRate float64, ts int64) error {
	if price <= 0 {
		return nil
	}
	b, _ := json.Marshal(markEntry{Venue: venue, Symbol: symbol, Price: price, FundingRate: fundingRate, Ts: ts})

	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyMarks, field(venue, symbol), string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyMarks, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Repo) GetMarkPrice(ctx context.Context, venue, symbol string) (float64, int64, error) {
	raw, err := r.rdb.HGet(ctx, r.keyMarks, field(venue, symbol)).Result()
	if err == redis.Nil {
		return 0, 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, 0, err
	}
	var e markEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return 0, 0, err
	}
	return e.Price, e.Ts, nil
}

func (r *Repo) UpsertPosition(ctx context.Context, venue, symbol string, size, entryPrice float64, ts int64) error {
	b, _ := json.Marshal(positionEntry{Venue: venue, Symbol: symbol, Size: size, EntryPrice: entryPrice, Ts: ts})

	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyPositions, field(venue, symbol), string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyPositions, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Repo) GetPosition(ctx context.Context, venue, symbol string) (float64, float64, error) {
	raw, err := r.rdb.HGet(ctx, r.keyPositions, field(venue, symbol)).Result()
	if err == redis.Nil {
		return 0, 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, 0, err
	}
	var e positionEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return 0, 0, err
	}
	return e.Size, e.EntryPrice, nil
}

func (r *Repo) ListPositions(ctx context.Context) ([]map[string]interface{}, error) {
	entries, err := r.rdb.HGetAll(ctx, r.keyPositions).Result()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(entries))
	for _, raw := range entries {
		var e positionEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"venue":      e.Venue,
			"symbol":     e.Symbol,
			"size":       e.Size,
			"entryPrice": e.EntryPrice,
			"ts_ms":      e.Ts,
		})
	}
	return out, nil
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	// snapshots live in the SQL stores
	return nil
}

func (r *Repo) InsertConnEvent(ctx context.Context, ts int64, venue, state string) error {
	// 1) Stream: XADD <stream> * ts venue state
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.eventStream,
		Values: map[string]any{
			"ts_ms": ts,
			"venue": venue,
			"state": state,
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	return r.rdb.Publish(ctx, r.eventChan, eventPayload(ts, venue, state)).Err()
}

func eventPayload(ts int64, venue, state string) string {
	return fmt.Sprintf(`{"ts_ms":%d,"venue":%q,"state":%q}`, ts, venue, state)
}

// Close is a no-op: the client is owned and closed by the service
// context.
func (r *Repo) Close() error { return nil }

var _ port.Repository = (*Repo)(nil)
