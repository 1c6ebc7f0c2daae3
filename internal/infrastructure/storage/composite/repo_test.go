package composite

import (
	"context"
	"errors"
	"testing"

	"uniperp/internal/infrastructure/storage"
)

func TestWritesFanOutToAllStores(t *testing.T) {
	a := storage.NewMemory()
	b := storage.NewMemory()
	repo := New(a, b)
	ctx := context.Background()

	if err := repo.UpsertMarkPrice(ctx, "extended", "BTC-USD", 45000, 0.0001, 1); err != nil {
		t.Fatalf("UpsertMarkPrice failed: %v", err)
	}

	for i, store := range []*storage.Memory{a, b} {
		price, _, err := store.GetMarkPrice(ctx, "extended", "BTC-USD")
		if err != nil {
			t.Fatalf("store %d missing write: %v", i, err)
		}
		if price != 45000 {
			t.Errorf("store %d: expected 45000, got %v", i, price)
		}
	}
}

func TestReadsServeFirstHit(t *testing.T) {
	a := storage.NewMemory()
	b := storage.NewMemory()
	repo := New(a, b)
	ctx := context.Background()

	// Only the second store has the value.
	if err := b.UpsertPosition(ctx, "extended", "ETH-USD", -1.5, 3000, 1); err != nil {
		t.Fatal(err)
	}

	size, entry, err := repo.GetPosition(ctx, "extended", "ETH-USD")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if size != -1.5 || entry != 3000 {
		t.Errorf("expected (-1.5, 3000), got (%v, %v)", size, entry)
	}
}

func TestMissInAllStoresIsNotFound(t *testing.T) {
	repo := New(storage.NewMemory(), storage.NewMemory())

	_, _, err := repo.GetMarkPrice(context.Background(), "extended", "NOPE-USD")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNewFiltersNilStores(t *testing.T) {
	repo := New(nil, storage.NewMemory(), nil)

	if err := repo.InsertConnEvent(context.Background(), 1, "extended", "ready"); err != nil {
		t.Fatalf("InsertConnEvent failed: %v", err)
	}
}

func TestConnEventsReachEveryStore(t *testing.T) {
	a := storage.NewMemory()
	b := storage.NewMemory()
	repo := New(a, b)

	if err := repo.InsertConnEvent(context.Background(), 1, "backpack", "reconnecting"); err != nil {
		t.Fatalf("InsertConnEvent failed: %v", err)
	}

	for i, store := range []*storage.Memory{a, b} {
		events := store.ConnEvents()
		if len(events) != 1 || events[0] != "backpack:reconnecting" {
			t.Errorf("store %d: unexpected events %v", i, events)
		}
	}
}
