package extended

import (
	"context"
	"testing"

	"uniperp/internal/domain/model"
	"uniperp/internal/stream"
)

func decodeData(t *testing.T, a *AccountAdapter, raw string) []stream.Update {
	t.Helper()
	dec, err := a.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if dec.Kind != stream.KindData {
		t.Fatalf("expected data frame, got kind %v", dec.Kind)
	}
	return dec.Updates
}

func TestAccountAdapterOptions(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "key-123")

	opts := a.Options()
	if opts.PingInterval != 0 {
		t.Fatal("client pings must stay disabled for this venue")
	}
	if opts.ReceiveTimeout <= 0 {
		t.Fatal("receive timeout must be set; the server pings every 15s")
	}
	if got := opts.Header.Get("X-Api-Key"); got != "key-123" {
		t.Fatalf("auth header missing, got %q", got)
	}
	if a.URL() != "wss://example.test/v1/account" {
		t.Fatalf("unexpected url %q", a.URL())
	}
}

func TestAccountAdapterNoSubscribeFrames(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "k")
	frames, err := a.SubscribeFrames([]stream.Topic{TopicPositions})
	if err != nil || frames != nil {
		t.Fatalf("account stream auto-subscribes, got frames=%v err=%v", frames, err)
	}
	if a.PingFrame() != nil {
		t.Fatal("adapter must never produce a ping frame")
	}
}

func TestDecodePositionsAccumulateAndClose(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "k")

	updates := decodeData(t, a, `{"type":"POSITION","seq":1,"data":{"positions":[
		{"market":"BTC-USD","status":"OPEN","side":"LONG","size":"1.5","openPrice":"50000","unrealisedPnl":"10"},
		{"market":"ETH-USD","status":"OPEN","side":"SHORT","size":"2","openPrice":"3000"}
	]}}`)
	positions := updates[0].Value.(map[string]model.Position)
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions["BTC-USD"].Size != 1.5 || positions["BTC-USD"].EntryPrice != 50000 {
		t.Fatalf("long position decoded wrong: %+v", positions["BTC-USD"])
	}
	if positions["ETH-USD"].Size != -2 {
		t.Fatalf("short size must be negative, got %v", positions["ETH-USD"].Size)
	}

	// closing one market must keep the other
	updates = decodeData(t, a, `{"type":"POSITION","seq":2,"data":{"positions":[
		{"market":"BTC-USD","status":"CLOSED","size":"0"}
	]}}`)
	positions = updates[0].Value.(map[string]model.Position)
	if _, ok := positions["BTC-USD"]; ok {
		t.Fatal("closed position must leave the map")
	}
	if _, ok := positions["ETH-USD"]; !ok {
		t.Fatal("untouched position must survive")
	}
}

func TestDecodeOrdersDropTerminalStates(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "k")

	updates := decodeData(t, a, `{"type":"ORDER","seq":1,"data":{"orders":[
		{"id":101,"market":"BTC-USD","side":"BUY","qty":"1","filledQty":"0","price":"49000","type":"LIMIT","status":"NEW","createdTime":1700000000000}
	]}}`)
	orders := updates[0].Value.(map[string]model.Order)
	if len(orders) != 1 {
		t.Fatalf("expected 1 open order, got %d", len(orders))
	}
	o := orders["101"]
	if o.Side != model.SideBuy || o.Price != 49000 || !o.IsOpen() {
		t.Fatalf("order decoded wrong: %+v", o)
	}

	updates = decodeData(t, a, `{"type":"ORDER","seq":2,"data":{"orders":[
		{"id":101,"market":"BTC-USD","status":"FILLED"}
	]}}`)
	orders = updates[0].Value.(map[string]model.Order)
	if len(orders) != 0 {
		t.Fatalf("filled order must be removed, got %v", orders)
	}
}

func TestDecodeBalance(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "k")

	updates := decodeData(t, a, `{"type":"BALANCE","seq":1,"data":{"balance":
		{"balance":"1000","equity":"1010","availableForTrade":"900","unrealisedPnl":"10"}
	}}`)
	b := updates[0].Value.(model.Balance)
	if b.Total != 1010 || b.Available != 900 {
		t.Fatalf("balance decoded wrong: %+v", b)
	}
	if updates[0].Topic != TopicBalance {
		t.Fatalf("wrong topic: %v", updates[0].Topic)
	}
}

func TestDecodeMarkPrice(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "k")

	updates := decodeData(t, a, `{"type":"MP","data":{"m":"BTC-USD","p":"50123.5"}}`)
	mp := updates[0].Value.(model.MarkPrice)
	if mp.Price != 50123.5 || mp.Symbol != "BTC-USD" {
		t.Fatalf("mark price decoded wrong: %+v", mp)
	}
	if updates[0].Topic != MarkPriceTopic("BTC-USD") {
		t.Fatalf("wrong topic: %v", updates[0].Topic)
	}
}

func TestDecodeUnknownTypeIgnored(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "k")

	dec, err := a.Decode([]byte(`{"type":"SOMETHING_NEW","seq":3}`))
	if err != nil {
		t.Fatalf("unknown types must not error: %v", err)
	}
	if dec.Kind != stream.KindIgnore {
		t.Fatalf("unknown types must be ignored, got %v", dec.Kind)
	}
}

func TestDecodeGarbageErrors(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "k")
	if _, err := a.Decode([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSequenceGapDoesNotError(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "k")

	decodeData(t, a, `{"type":"BALANCE","seq":1,"data":{"balance":{"equity":"1"}}}`)
	// gap from 1 to 5 is logged, not fatal
	decodeData(t, a, `{"type":"BALANCE","seq":5,"data":{"balance":{"equity":"2"}}}`)
}

func TestAuthenticateResetsAccumulatedState(t *testing.T) {
	a := NewAccountAdapter("wss://example.test/v1", "k")

	decodeData(t, a, `{"type":"POSITION","seq":7,"data":{"positions":[
		{"market":"BTC-USD","status":"OPEN","side":"LONG","size":"1","openPrice":"50000"}
	]}}`)

	// a fresh transport pushes a new snapshot; the old one is stale
	if err := a.Authenticate(context.Background(), nil); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	updates := decodeData(t, a, `{"type":"POSITION","seq":1,"data":{"positions":[
		{"market":"ETH-USD","status":"OPEN","side":"LONG","size":"3","openPrice":"3000"}
	]}}`)
	positions := updates[0].Value.(map[string]model.Position)
	if _, ok := positions["BTC-USD"]; ok {
		t.Fatal("state from the previous connection must be gone")
	}
	if _, ok := positions["ETH-USD"]; !ok {
		t.Fatal("new snapshot must be present")
	}
}

func TestMarkPriceAdapterDecodes(t *testing.T) {
	a := NewMarkPriceAdapter("wss://example.test/v1/")
	if a.URL() != "wss://example.test/v1/prices/mark" {
		t.Fatalf("unexpected url %q", a.URL())
	}

	dec, err := a.Decode([]byte(`{"type":"MP","data":{"m":"ETH-USD","p":"3210.75"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	mp := dec.Updates[0].Value.(model.MarkPrice)
	if mp.Price != 3210.75 {
		t.Fatalf("price decoded wrong: %+v", mp)
	}

	dec, err = a.Decode([]byte(`{"type":"OTHER"}`))
	if err != nil || dec.Kind != stream.KindIgnore {
		t.Fatalf("non-MP frames must be ignored: kind=%v err=%v", dec.Kind, err)
	}
}
