package postgres

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"

	"uniperp/internal/application/port"
	"uniperp/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS mark_prices (
  venue TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  funding_rate DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL,
  PRIMARY KEY(venue, symbol)
);

CREATE TABLE IF NOT EXISTS positions (
  venue TEXT NOT NULL,
  symbol TEXT NOT NULL,
  size DOUBLE PRECISION NOT NULL,
  entry_price DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL,
  PRIMARY KEY(venue, symbol)
);

CREATE TABLE IF NOT EXISTS snapshots (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);

CREATE TABLE IF NOT EXISTS conn_events (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  venue TEXT NOT NULL,
  state TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conn_events_ts ON conn_events(ts_ms);
`)
	return err
}

func (r *Repo) UpsertMarkPrice(ctx context.Context, venue, symbol string, price, fundingRate float64, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mark_prices(venue, symbol, price, funding_rate, ts_ms)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT(venue, symbol) DO UPDATE SET
		price=excluded.price, funding_rate=excluded.funding_rate, ts_ms=excluded.ts_ms
	`, venue, symbol, price, fundingRate, ts)
	return err
}

func (r *Repo) GetMarkPrice(ctx context.Context, venue, symbol string) (price float64, ts int64, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT price, ts_ms FROM mark_prices WHERE venue=$1 AND symbol=$2`, venue, symbol).
		Scan(&price, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		err = storage.ErrNotFound
	}
	return
}

func (r *Repo) UpsertPosition(ctx context.Context, venue, symbol string, size, entryPrice float64, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions(venue, symbol, size, entry_price, ts_ms)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT(venue, symbol) DO UPDATE SET
		size=excluded.size, entry_price=excluded.entry_price, ts_ms=excluded.ts_ms
	`, venue, symbol, size, entryPrice, ts)
	return err
}

func (r *Repo) GetPosition(ctx context.Context, venue, symbol string) (size, entryPrice float64, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT size, entry_price FROM positions WHERE venue=$1 AND symbol=$2`, venue, symbol).
		Scan(&size, &entryPrice)
	if errors.Is(err, sql.ErrNoRows) {
		err = storage.ErrNotFound
	}
	return
}

func (r *Repo) ListPositions(ctx context.Context) ([]map[string]interface{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT venue, symbol, size, entry_price, ts_ms FROM positions ORDER BY ts_ms DESC`)
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
	_, err := r.db.ExecContext(ctx, `INSERT INTO snapshots(ts_ms, payload) VALUES($1, $2)`, ts, payload)
	return err
}

func (r *Repo) InsertConnEvent(ctx context.Context, ts int64, venue, state string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO conn_events(ts_ms, venue, state) VALUES($1, $2, $3)`, ts, venue, state)
	return err
}

var _ port.Repository = (*Repo)(nil)
