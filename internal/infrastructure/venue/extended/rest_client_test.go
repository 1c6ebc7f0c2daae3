package extended

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"uniperp/internal/infrastructure/signer"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *APIClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewAPIClient(srv.URL, signer.Static{Key: "test-key", Signature: "test-sig"})
	return srv, client
}

func TestSignedRequestCarriesAuthHeaders(t *testing.T) {
	var gotKey, gotSig, gotTS string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotSig = r.Header.Get("X-Api-Signature")
		gotTS = r.Header.Get("X-Api-Timestamp")
		w.Write([]byte(`{"status":"OK","data":{"equity":"1000","availableForTrade":"800"}}`))
	})

	if _, err := client.GetBalance(context.Background()); err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("expected api key header, got %q", gotKey)
	}
	if gotSig != "test-sig" {
		t.Errorf("expected signature header, got %q", gotSig)
	}
	if gotTS == "" {
		t.Error("expected timestamp header")
	}
}

func TestGetPositionsNegatesShorts(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/user/positions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"OK","data":[
			{"market":"BTC-USD","side":"SHORT","size":"0.5","openPrice":"45000","unrealisedPnl":"12.5","leverage":"10"},
			{"market":"ETH-USD","side":"LONG","size":"0","openPrice":"3000"}
		]}`))
	})

	positions, err := client.GetPositions(context.Background(), "")
	if err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position (zero size dropped), got %d", len(positions))
	}
	p := positions[0]
	if p.Size != -0.5 {
		t.Errorf("expected short size -0.5, got %v", p.Size)
	}
	if p.EntryPrice != 45000 {
		t.Errorf("expected entry 45000, got %v", p.EntryPrice)
	}
}

func TestGetOpenOrdersDecodes(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("market"); got != "BTC-USD" {
			t.Errorf("expected market query, got %q", got)
		}
		w.Write([]byte(`{"status":"OK","data":[
			{"id":123,"market":"BTC-USD","side":"buy","type":"limit","status":"new","price":"44000.5","qty":"0.1","filledQty":"0.02","createdTime":1700000000000}
		]}`))
	})

	orders, err := client.GetOpenOrders(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("GetOpenOrders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.OrderID != "123" {
		t.Errorf("expected order id 123, got %q", o.OrderID)
	}
	if o.PriceStr != "44000.5" || o.Price != 44000.5 {
		t.Errorf("price mismatch: %q / %v", o.PriceStr, o.Price)
	}
	if !o.IsOpen() {
		t.Error("NEW order should be open")
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ERROR","error":{"code":1102,"message":"insufficient margin"}}`))
	})

	_, err := client.GetBalance(context.Background())
	if err == nil {
		t.Fatal("expected api error")
	}
}

func TestHTTPErrorSurfaces(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.GetMarkets(context.Background())
	if err == nil {
		t.Fatal("expected http error")
	}
}

func TestGetMarkPriceFiltersActiveMarket(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","data":[
			{"name":"BTC-USD","active":true,"marketStats":{"markPrice":"45123.4","fundingRate":"0.0001"}}
		]}`))
	})

	mp, err := client.GetMarkPrice(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("GetMarkPrice failed: %v", err)
	}
	if mp.Price != 45123.4 {
		t.Errorf("expected 45123.4, got %v", mp.Price)
	}
	if mp.FundingRate != 0.0001 {
		t.Errorf("expected funding 0.0001, got %v", mp.FundingRate)
	}
}

func TestGetMarketsReturnsActiveOnly(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","data":[
			{"name":"BTC-USD","active":true},
			{"name":"OLD-USD","active":false},
			{"name":"ETH-USD","active":true}
		]}`))
	})

	markets, err := client.GetMarkets(context.Background())
	if err != nil {
		t.Fatalf("GetMarkets failed: %v", err)
	}
	if len(markets) != 2 {
		t.Errorf("expected 2 active markets, got %v", markets)
	}
}
