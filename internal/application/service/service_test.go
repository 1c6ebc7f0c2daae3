package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"uniperp/internal/domain/model"
	"uniperp/internal/stream"
)

type mockRepository struct {
	priceUpdates    map[string]float64
	positionUpdates map[string]float64
	snapshots       []string
	connEvents      []string
	failConnEvent   bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		priceUpdates:    make(map[string]float64),
		positionUpdates: make(map[string]float64),
	}
}

func (m *mockRepository) UpsertMarkPrice(ctx context.Context, venue, symbol string, price, fundingRate float64, ts int64) error {
	m.priceUpdates[venue+":"+symbol] = price
	return nil
}

func (m *mockRepository) GetMarkPrice(ctx context.Context, venue, symbol string) (float64, int64, error) {
	price, ok := m.priceUpdates[venue+":"+symbol]
	if !ok {
		return 0, 0, errors.New("not found")
	}
	return price, 1, nil
}

func (m *mockRepository) UpsertPosition(ctx context.Context, venue, symbol string, size, entryPrice float64, ts int64) error {
	m.positionUpdates[venue+":"+symbol] = size
	return nil
}

func (m *mockRepository) GetPosition(ctx context.Context, venue, symbol string) (float64, float64, error) {
	size, ok := m.positionUpdates[venue+":"+symbol]
	if !ok {
		return 0, 0, errors.New("not found")
	}
	return size, 100.0, nil
}

func (m *mockRepository) ListPositions(ctx context.Context) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(m.positionUpdates))
	for key, size := range m.positionUpdates {
		out = append(out, map[string]interface{}{"key": key, "size": size})
	}
	return out, nil
}

func (m *mockRepository) InsertSnapshot(ctx context.Context, ts int64, payload string) error {
	m.snapshots = append(m.snapshots, payload)
	return nil
}

func (m *mockRepository) InsertConnEvent(ctx context.Context, ts int64, venue, state string) error {
	if m.failConnEvent {
		return errors.New("store down")
	}
	m.connEvents = append(m.connEvents, venue+":"+state)
	return nil
}

func (m *mockRepository) Close() error { return nil }

func TestPriceServiceUpdateMarkPrice(t *testing.T) {
	mock := newMockRepository()
	svc := NewPriceService(mock)

	ctx := context.Background()
	err := svc.UpdateMarkPrice(ctx, &model.MarkPrice{
		Venue:  "extended",
		Symbol: "BTC-USD",
		Price:  45000.0,
		Ts:     1234567890,
	})
	if err != nil {
		t.Fatalf("UpdateMarkPrice failed: %v", err)
	}

	if price := mock.priceUpdates["extended:BTC-USD"]; price != 45000.0 {
		t.Errorf("expected price 45000.0, got %v", price)
	}
}

func TestPriceServiceSkipsNilAndNonPositive(t *testing.T) {
	mock := newMockRepository()
	svc := NewPriceService(mock)
	ctx := context.Background()

	if err := svc.UpdateMarkPrice(ctx, nil); err != nil {
		t.Fatalf("nil update failed: %v", err)
	}
	if err := svc.UpdateMarkPrice(ctx, &model.MarkPrice{Venue: "extended", Symbol: "BTC-USD", Price: 0}); err != nil {
		t.Fatalf("zero-price update failed: %v", err)
	}
	if len(mock.priceUpdates) != 0 {
		t.Errorf("expected no writes, got %v", mock.priceUpdates)
	}
}

func TestPositionServiceRoundTrip(t *testing.T) {
	mock := newMockRepository()
	svc := NewPositionService(mock)
	ctx := context.Background()

	err := svc.UpdatePosition(ctx, &model.Position{
		Venue:      "extended",
		Symbol:     "ETH-USD",
		Size:       -2.5,
		EntryPrice: 3000.0,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("UpdatePosition failed: %v", err)
	}

	size, entry, err := svc.GetPosition(ctx, "extended", "ETH-USD")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if size != -2.5 {
		t.Errorf("expected size -2.5, got %v", size)
	}
	if entry != 100.0 {
		t.Errorf("expected entry 100.0, got %v", entry)
	}

	all, err := svc.ListAllPositions(ctx)
	if err != nil {
		t.Fatalf("ListAllPositions failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 position, got %d", len(all))
	}
}

func TestPositionServiceSkipsNil(t *testing.T) {
	mock := newMockRepository()
	svc := NewPositionService(mock)

	if err := svc.UpdatePosition(context.Background(), nil); err != nil {
		t.Fatalf("nil update failed: %v", err)
	}
	if len(mock.positionUpdates) != 0 {
		t.Errorf("expected no writes, got %v", mock.positionUpdates)
	}
}

func TestSnapshotServiceSave(t *testing.T) {
	mock := newMockRepository()
	svc := NewSnapshotService(mock)

	if err := svc.SaveSnapshot(context.Background(), 1234, `{"ok":true}`); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if len(mock.snapshots) != 1 || mock.snapshots[0] != `{"ok":true}` {
		t.Errorf("unexpected snapshots: %v", mock.snapshots)
	}
}

func TestConnectivityServiceRecordsTransitions(t *testing.T) {
	mock := newMockRepository()
	svc := NewConnectivityService(mock)

	svc.RecordTransition(context.Background(), "extended", stream.StateReady)

	if len(mock.connEvents) != 1 || mock.connEvents[0] != "extended:ready" {
		t.Errorf("unexpected conn events: %v", mock.connEvents)
	}
}

func TestConnectivityListenerAdaptsVenue(t *testing.T) {
	mock := newMockRepository()
	svc := NewConnectivityService(mock)

	fn := svc.Listener("backpack")
	fn(stream.StateReconnecting)
	fn(stream.StateReady)

	want := []string{"backpack:reconnecting", "backpack:ready"}
	if len(mock.connEvents) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), mock.connEvents)
	}
	for i, ev := range want {
		if mock.connEvents[i] != ev {
			t.Errorf("event %d: expected %q, got %q", i, ev, mock.connEvents[i])
		}
	}
}

func TestConnectivityServiceSwallowsStoreErrors(t *testing.T) {
	mock := newMockRepository()
	mock.failConnEvent = true
	svc := NewConnectivityService(mock)

	// Persisting failures must not panic or propagate.
	svc.RecordTransition(context.Background(), "extended", stream.StateDisconnected)
}
