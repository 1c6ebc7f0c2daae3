// Package composite fans writes out to every configured store and
// serves reads from the first store that has the answer.
package composite

import (
	"context"
	"errors"

	"uniperp/internal/application/port"
	"uniperp/internal/infrastructure/storage"
)

type Repo struct {
	repos []port.Repository
}

func New(repos ...port.Repository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) UpsertMarkPrice(ctx context.Context, venue, symbol string, price, fundingRate float64, ts int64) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.UpsertMarkPrice(ctx, venue, symbol, price, fundingRate, ts); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) GetMarkPrice(ctx context.Context, venue, symbol string) (float64, int64, error) {
	for _, repo := range r.repos {
		price, ts, err := repo.GetMarkPrice(ctx, venue, symbol)
		if err == nil {
			return price, ts, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return 0, 0, err
		}
	}
	return 0, 0, storage.ErrNotFound
}

func (r *Repo) UpsertPosition(ctx context.Context, venue, symbol string, size, entryPrice float64, ts int64) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.UpsertPosition(ctx, venue, symbol, size, entryPrice, ts); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) GetPosition(ctx context.Context, venue, symbol string) (float64, float64, error) {
	for _, repo := range r.repos {
		size, entry, err := repo.GetPosition(ctx, venue, symbol)
		if err == nil {
			return size, entry, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return 0, 0, err
		}
	}
	return 0, 0, storage.ErrNotFound
}

func (r *Repo) ListPositions(ctx context.Context) ([]map[string]interface{}, error) {
	for _, repo := range r.repos {
		positions, err := repo.ListPositions(ctx)
		if err == nil && len(positions) > 0 {
			return positions, nil
		}
	}
	return nil, nil
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.InsertSnapshot(ctx, ts, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) InsertConnEvent(ctx context.Context, ts int64, venue, state string) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.InsertConnEvent(ctx, ts, venue, state); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) Close() error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Repository = (*Repo)(nil)
