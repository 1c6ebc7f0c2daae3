package backpack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"uniperp/internal/application/port"
	"uniperp/internal/domain/model"
	"uniperp/internal/stream"
)

const waitPrice = 3 * time.Second

// Venue exposes Backpack as a market-data venue. Trading operations
// report port.ErrUnsupported.
type Venue struct {
	wsURL   string
	restURL string
	http    *http.Client
	pool    *stream.Pool
	onState func(stream.ConnState)
}

func New(wsURL, restURL string) *Venue {
	if restURL == "" {
		restURL = "https://api.backpack.exchange/api/v1"
	}
	return &Venue{
		wsURL:   wsURL,
		restURL: strings.TrimRight(restURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		pool:    stream.NewPool(),
	}
}

func (v *Venue) SetStateListener(fn func(stream.ConnState)) { v.onState = fn }

func (v *Venue) Name() string { return Name }

func (v *Venue) client(ctx context.Context) (*stream.Client, error) {
	return v.pool.Acquire(ctx, Name+":public", func() (*stream.Client, error) {
		c := stream.NewClient(NewAdapter(v.wsURL))
		if v.onState != nil {
			c.SetStateListener(v.onState)
		}
		return c, nil
	})
}

// NativeSymbol maps a generic symbol like "BTC-USD" to Backpack's
// market name, e.g. "BTC_USDC_PERP". Already-native names pass through.
func NativeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, "_PERP") {
		return s
	}
	base := s
	if i := strings.IndexAny(s, "-_/"); i > 0 {
		base = s[:i]
	}
	return base + "_USDC_PERP"
}

// GetMarkPrice subscribes lazily and serves from the stream cache,
// with a REST fallback while the first update is in flight. The
// returned mark price keeps the caller's symbol spelling.
func (v *Venue) GetMarkPrice(ctx context.Context, symbol string) (*model.MarkPrice, error) {
	native := NativeSymbol(symbol)
	topic := MarkPriceTopic(native)
	if c, err := v.client(ctx); err == nil {
		_ = c.Subscribe(topic)
		if val, err := c.WaitReady(ctx, topic, waitPrice); err == nil {
			if mp, ok := val.(model.MarkPrice); ok {
				mp.Symbol = symbol
				return &mp, nil
			}
		}
	}

	log.Debug().Str("venue", Name).Str("symbol", symbol).Msg("mark price REST fallback")
	return v.restMarkPrice(ctx, symbol, native)
}

func (v *Venue) restMarkPrice(ctx context.Context, symbol, native string) (*model.MarkPrice, error) {
	var payload []struct {
		Symbol      string      `json:"symbol"`
		MarkPrice   json.Number `json:"markPrice"`
		FundingRate json.Number `json:"fundingRate"`
	}
	if err := v.get(ctx, "/markPrices?symbol="+native, &payload); err != nil {
		return nil, err
	}
	for _, p := range payload {
		if p.Symbol == native {
			price, _ := p.MarkPrice.Float64()
			funding, _ := p.FundingRate.Float64()
			return &model.MarkPrice{
				Venue:       Name,
				Symbol:      symbol,
				PriceStr:    p.MarkPrice.String(),
				Price:       price,
				FundingRate: funding,
				Ts:          time.Now().UnixMilli(),
			}, nil
		}
	}
	return nil, fmt.Errorf("backpack: unknown symbol %q", symbol)
}

// GetAvailableSymbols lists perpetual markets via REST.
func (v *Venue) GetAvailableSymbols(ctx context.Context) ([]string, error) {
	var payload []struct {
		Symbol     string `json:"symbol"`
		MarketType string `json:"marketType"`
	}
	if err := v.get(ctx, "/markets", &payload); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(payload))
	for _, m := range payload {
		if strings.EqualFold(m.MarketType, "PERP") {
			out = append(out, m.Symbol)
		}
	}
	return out, nil
}

func (v *Venue) get(ctx context.Context, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.restURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backpack http %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, dst)
}

// Trading surface: not offered on this venue.

func (v *Venue) CreateOrder(ctx context.Context, req port.OrderRequest) (*model.Order, error) {
	return nil, fmt.Errorf("backpack create order: %w", port.ErrUnsupported)
}

func (v *Venue) CancelOrders(ctx context.Context, symbol string, orderIDs []string) error {
	return fmt.Errorf("backpack cancel orders: %w", port.ErrUnsupported)
}

func (v *Venue) GetOpenOrders(ctx context.Context, symbol string) ([]*model.Order, error) {
	return nil, fmt.Errorf("backpack open orders: %w", port.ErrUnsupported)
}

func (v *Venue) GetPosition(ctx context.Context, symbol string) (*model.Position, error) {
	return nil, fmt.Errorf("backpack position: %w", port.ErrUnsupported)
}

func (v *Venue) ClosePosition(ctx context.Context, symbol string) (*model.Order, error) {
	return nil, fmt.Errorf("backpack close position: %w", port.ErrUnsupported)
}

func (v *Venue) GetCollateral(ctx context.Context) (*model.Balance, error) {
	return nil, fmt.Errorf("backpack collateral: %w", port.ErrUnsupported)
}

func (v *Venue) UpdateLeverage(ctx context.Context, symbol string, leverage float64) error {
	return fmt.Errorf("backpack leverage: %w", port.ErrUnsupported)
}

func (v *Venue) GetLeverageInfo(ctx context.Context, symbol string) (*model.LeverageInfo, error) {
	return nil, fmt.Errorf("backpack leverage info: %w", port.ErrUnsupported)
}

func (v *Venue) Close() error {
	v.pool.CloseAll()
	return nil
}
