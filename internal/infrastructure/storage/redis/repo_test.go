package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestMarkEntryRoundTrip(t *testing.T) {
	in := markEntry{
		Venue:       "extended",
		Symbol:      "BTC-USD",
		Price:       45000.5,
		FundingRate: 0.0001,
		Ts:          1700000000000,
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out markEntry
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: in=%+v out=%+v", in, out)
	}
}

func TestPositionEntryRoundTrip(t *testing.T) {
	in := positionEntry{
		Venue:      "extended",
		Symbol:     "ETH-USD",
		Size:       -2.5,
		EntryPrice: 3000,
		Ts:         1700000000000,
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out positionEntry
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: in=%+v out=%+v", in, out)
	}
}

func TestHashField(t *testing.T) {
	if got := field("extended", "BTC-USD"); got != "extended:BTC-USD" {
		t.Errorf("unexpected hash field %q", got)
	}
}

func TestNewDerivesKeys(t *testing.T) {
	r := New(nil, "uniperp", 5*time.Minute, "uniperp:events")

	if r.keyMarks != "uniperp:marks" {
		t.Errorf("unexpected marks key %q", r.keyMarks)
	}
	if r.keyPositions != "uniperp:positions" {
		t.Errorf("unexpected positions key %q", r.keyPositions)
	}
	if r.eventStream != "uniperp:events" {
		t.Errorf("unexpected event stream %q", r.eventStream)
	}
	if r.eventChan != "uniperp:events:pub" {
		t.Errorf("pub/sub channel should derive from the stream, got %q", r.eventChan)
	}
}

func TestNewDefaultsEventStream(t *testing.T) {
	r := New(nil, "uniperp", 0, "  ")

	if r.eventStream != "uniperp:events" {
		t.Errorf("blank event stream should fall back to prefix, got %q", r.eventStream)
	}
}

func TestConnEventPayloadShape(t *testing.T) {
	// The pub/sub message is built by hand; make sure it stays valid
	// JSON with the documented fields, including quote escaping.
	msg := eventPayload(1700000000000, `ext"ended`, "ready")

	var decoded struct {
		Ts    int64  `json:"ts_ms"`
		Venue string `json:"venue"`
		State string `json:"state"`
	}
	if err := json.Unmarshal([]byte(msg), &decoded); err != nil {
		t.Fatalf("event payload not valid JSON: %v", err)
	}
	if decoded.Venue != `ext"ended` || decoded.State != "ready" || decoded.Ts != 1700000000000 {
		t.Errorf("unexpected payload fields: %+v", decoded)
	}
}

func TestUpsertMarkPriceSkipsNonPositive(t *testing.T) {
	// A nil client would panic if the write path were reached.
	r := New(nil, "uniperp", 0, "")

	if err := r.UpsertMarkPrice(context.Background(), "extended", "BTC-USD", 0, 0, 1); err != nil {
		t.Fatalf("non-positive price must be a no-op, got %v", err)
	}
}

func TestSnapshotAndCloseAreNoOps(t *testing.T) {
	r := New(nil, "uniperp", 0, "")

	if err := r.InsertSnapshot(context.Background(), 1, "{}"); err != nil {
		t.Errorf("InsertSnapshot should defer to the SQL stores, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close should be a no-op, got %v", err)
	}
}
