package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"uniperp/internal/infrastructure/storage"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestUpsertMarkPriceOverwrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertMarkPrice(ctx, "extended", "BTC-USD", 50000, 0.0001, 1000); err != nil {
		t.Fatalf("UpsertMarkPrice failed: %v", err)
	}
	if err := repo.UpsertMarkPrice(ctx, "extended", "BTC-USD", 50100, 0.0002, 2000); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	price, ts, err := repo.GetMarkPrice(ctx, "extended", "BTC-USD")
	if err != nil {
		t.Fatalf("GetMarkPrice failed: %v", err)
	}
	if price != 50100 || ts != 2000 {
		t.Errorf("expected latest value, got price=%v ts=%v", price, ts)
	}
}

func TestGetMarkPriceNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, _, err := repo.GetMarkPrice(context.Background(), "extended", "NOPE")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertAndGetPosition(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertPosition(ctx, "extended", "BTC-USD", 1.5, 40000, 1234567890); err != nil {
		t.Fatalf("UpsertPosition failed: %v", err)
	}

	size, entry, err := repo.GetPosition(ctx, "extended", "BTC-USD")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if size != 1.5 || entry != 40000 {
		t.Errorf("expected size=1.5, entry=40000, got %v, %v", size, entry)
	}

	// shorts keep their sign
	if err := repo.UpsertPosition(ctx, "extended", "BTC-USD", -2, 41000, 1234567891); err != nil {
		t.Fatalf("upsert short failed: %v", err)
	}
	size, _, err = repo.GetPosition(ctx, "extended", "BTC-USD")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if size != -2 {
		t.Errorf("expected size=-2, got %v", size)
	}
}

func TestListPositions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_ = repo.UpsertPosition(ctx, "extended", "BTC-USD", 1, 50000, 1000)
	_ = repo.UpsertPosition(ctx, "backpack", "SOL_USDC_PERP", 10, 20, 2000)

	positions, err := repo.ListPositions(ctx)
	if err != nil {
		t.Fatalf("ListPositions failed: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
}

func TestInsertSnapshotAndConnEvent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.InsertSnapshot(ctx, 1000, "payload"); err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}
	if err := repo.InsertConnEvent(ctx, 1000, "extended", "ready"); err != nil {
		t.Fatalf("InsertConnEvent failed: %v", err)
	}

	var count int
	if err := repo.GetDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM conn_events WHERE venue='extended'`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 conn event, got %d", count)
	}
}
