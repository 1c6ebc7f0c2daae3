package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"uniperp/internal/application/port"
	"uniperp/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS mark_prices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  venue TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price REAL NOT NULL,
  funding_rate REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL,
  UNIQUE(venue, symbol)
);
CREATE INDEX IF NOT EXISTS idx_mark_prices_ts ON mark_prices(ts_ms);
CREATE INDEX IF NOT EXISTS idx_mark_prices_symbol ON mark_prices(symbol);

CREATE TABLE IF NOT EXISTS positions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  venue TEXT NOT NULL,
  symbol TEXT NOT NULL,
  size REAL NOT NULL,
  entry_price REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  UNIQUE(venue, symbol)
);
CREATE INDEX IF NOT EXISTS idx_positions_ts ON positions(ts_ms);
CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);

CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);

CREATE TABLE IF NOT EXISTS conn_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  venue TEXT NOT NULL,
  state TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conn_events_ts ON conn_events(ts_ms);
CREATE INDEX IF NOT EXISTS idx_conn_events_venue ON conn_events(venue);
`)
	return err
}

func (r *Repo) UpsertMarkPrice(ctx context.Context, venue, symbol string, price, fundingRate float64, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mark_prices(venue, symbol, price, funding_rate, ts_ms, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue, symbol) DO UPDATE SET
		price=excluded.price, funding_rate=excluded.funding_rate, ts_ms=excluded.ts_ms
	`, venue, symbol, price, fundingRate, ts, ts)
	return err
}

func (r *Repo) GetMarkPrice(ctx context.Context, venue, symbol string) (price float64, ts int64, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT price, ts_ms FROM mark_prices WHERE venue=? AND symbol=?`, venue, symbol).
		Scan(&price, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		err = storage.ErrNotFound
	}
	return
}

func (r *Repo) UpsertPosition(ctx context.Context, venue, symbol string, size, entryPrice float64, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions(venue, symbol, size, entry_price, ts_ms, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue, symbol) DO UPDATE SET
		size=excluded.size, entry_price=excluded.entry_price, ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
	`, venue, symbol, size, entryPrice, ts, ts, ts)
	return err
}

func (r *Repo) GetPosition(ctx context.Context, venue, symbol string) (size, entryPrice float64, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT size, entry_price FROM positions WHERE venue=? AND symbol=?`, venue, symbol).
		Scan(&size, &entryPrice)
	if errors.Is(err, sql.ErrNoRows) {
		err = storage.ErrNotFound
	}
	return
}

func (r *Repo) ListPositions(ctx context.Context) ([]map[string]interface{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT venue, symbol, size, entry_price, ts_ms FROM positions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []map[string]interface{}
	for rows.Next() {
		var venue, symbol string
		var size, entryPrice float64
		var ts int64
		if err := rows.Scan(&venue, &symbol, &size, &entryPrice, &ts); err != nil {
			return nil, err
		}
		positions = append(positions, map[string]interface{}{
			"venue":      venue,
			"symbol":     symbol,
			"size":       size,
			"entryPrice": entryPrice,
			"ts_ms":      ts,
		})
	}
	return positions, rows.Err()
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO snapshots(ts_ms, payload, created_at) VALUES(?, ?, ?)`, ts, payload, ts)
	return err
}

func (r *Repo) InsertConnEvent(ctx context.Context, ts int64, venue, state string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO conn_events(ts_ms, venue, state, created_at) VALUES(?, ?, ?, ?)`, ts, venue, state, ts)
	return err
}

var _ port.Repository = (*Repo)(nil)
