package extended

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"uniperp/internal/application/port"
	"uniperp/internal/domain/model"
	"uniperp/internal/infrastructure/signer"
	"uniperp/internal/stream"
)

// waitSnapshot bounds how long read paths wait for the account stream
// before falling back to REST.
const waitSnapshot = 3 * time.Second

// Venue implements the unified venue interface for Extended. Reads are
// served from the stream caches when the stream has data, REST
// otherwise; writes always go through REST.
type Venue struct {
	wsURL   string
	rest    *APIClient
	apiKey  string
	pool    *stream.Pool
	onState func(stream.ConnState)
}

// New constructs the venue. Stream connections are dialed lazily on
// first use through the pool, so building a venue is cheap.
func New(wsURL, restURL, apiKey, apiSecret string) *Venue {
	return &Venue{
		wsURL:  wsURL,
		rest:   NewAPIClient(restURL, signer.NewCredentials(apiKey, apiSecret)),
		apiKey: apiKey,
		pool:   stream.NewPool(),
	}
}

// SetStateListener forwards stream lifecycle transitions, e.g. into
// the connectivity audit log. Must be set before the first read.
func (v *Venue) SetStateListener(fn func(stream.ConnState)) { v.onState = fn }

func (v *Venue) Name() string { return Name }

// account returns the pooled private-stream client, dialing on first
// use. The identity includes the key so two accounts never share a
// connection.
func (v *Venue) account(ctx context.Context) (*stream.Client, error) {
	return v.pool.Acquire(ctx, Name+":account:"+v.apiKey, func() (*stream.Client, error) {
		c := stream.NewClient(NewAccountAdapter(v.wsURL, v.apiKey))
		if v.onState != nil {
			c.SetStateListener(v.onState)
		}
		return c, nil
	})
}

// marks returns the pooled public mark-price client.
func (v *Venue) marks(ctx context.Context) (*stream.Client, error) {
	return v.pool.Acquire(ctx, Name+":marks", func() (*stream.Client, error) {
		c := stream.NewClient(NewMarkPriceAdapter(v.wsURL))
		if v.onState != nil {
			c.SetStateListener(v.onState)
		}
		return c, nil
	})
}

// GetPosition prefers the account stream: once the snapshot arrived, a
// missing market means flat, which REST would only confirm slower.
func (v *Venue) GetPosition(ctx context.Context, symbol string) (*model.Position, error) {
	if c, err := v.account(ctx); err == nil {
		if val, err := c.WaitReady(ctx, TopicPositions, waitSnapshot); err == nil {
			if positions, ok := val.(map[string]model.Position); ok {
				if p, ok := positions[symbol]; ok {
					return &p, nil
				}
				return &model.Position{Venue: Name, Symbol: symbol}, nil
			}
		}
	}

	log.Debug().Str("venue", Name).Str("symbol", symbol).Msg("position REST fallback")
	positions, err := v.rest.GetPositions(ctx, symbol)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return &model.Position{Venue: Name, Symbol: symbol}, nil
}

// GetOpenOrders trusts the stream cache once the order snapshot is in:
// an empty map is an answer, not a miss.
func (v *Venue) GetOpenOrders(ctx context.Context, symbol string) ([]*model.Order, error) {
	if c, err := v.account(ctx); err == nil {
		if val, err := c.WaitReady(ctx, TopicOrders, waitSnapshot); err == nil {
			if orders, ok := val.(map[string]model.Order); ok {
				out := make([]*model.Order, 0, len(orders))
				for _, o := range orders {
					if symbol == "" || o.Symbol == symbol {
						o := o
						out = append(out, &o)
					}
				}
				return out, nil
			}
		}
	}

	log.Debug().Str("venue", Name).Str("symbol", symbol).Msg("open orders REST fallback")
	return v.rest.GetOpenOrders(ctx, symbol)
}

func (v *Venue) GetCollateral(ctx context.Context) (*model.Balance, error) {
	if c, err := v.account(ctx); err == nil {
		if val, err := c.WaitReady(ctx, TopicBalance, waitSnapshot); err == nil {
			if b, ok := val.(model.Balance); ok {
				return &b, nil
			}
		}
	}

	log.Debug().Str("venue", Name).Msg("balance REST fallback")
	return v.rest.GetBalance(ctx)
}

// GetMarkPrice serves from the public mark price stream, subscribing
// lazily, and falls back to REST while the stream warms up.
func (v *Venue) GetMarkPrice(ctx context.Context, symbol string) (*model.MarkPrice, error) {
	topic := MarkPriceTopic(symbol)
	if c, err := v.marks(ctx); err == nil {
		_ = c.Subscribe(topic)
		if val, err := c.WaitReady(ctx, topic, waitSnapshot); err == nil {
			if mp, ok := val.(model.MarkPrice); ok {
				return &mp, nil
			}
		}
	}

	log.Debug().Str("venue", Name).Str("symbol", symbol).Msg("mark price REST fallback")
	return v.rest.GetMarkPrice(ctx, symbol)
}

func (v *Venue) CreateOrder(ctx context.Context, req port.OrderRequest) (*model.Order, error) {
	if req.Symbol == "" || req.SizeStr == "" {
		return nil, fmt.Errorf("extended: symbol and size required")
	}

	priceStr := req.PriceStr
	if req.Type == model.OrderTypeMarket && priceStr == "" {
		// The venue requires a limit cap even on market orders; use
		// the mark price with slippage headroom.
		mp, err := v.GetMarkPrice(ctx, req.Symbol)
		if err != nil {
			return nil, fmt.Errorf("extended: price for market order: %w", err)
		}
		slip := 1.05
		if req.Side == model.SideSell {
			slip = 0.95
		}
		priceStr = strconv.FormatFloat(mp.Price*slip, 'f', -1, 64)
	}

	return v.rest.CreateOrder(ctx, createOrderRequest{
		Market:      req.Symbol,
		Side:        string(req.Side),
		Type:        string(req.Type),
		Qty:         req.SizeStr,
		Price:       priceStr,
		ReduceOnly:  req.ReduceOnly,
		TimeInForce: string(req.TimeInForce),
		ClientID:    req.ClientID,
	})
}

// CancelOrders cancels the listed orders, or every order on the symbol
// when no ids are given.
func (v *Venue) CancelOrders(ctx context.Context, symbol string, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return v.rest.MassCancel(ctx, symbol)
	}
	for _, id := range orderIDs {
		if err := v.rest.CancelOrder(ctx, id); err != nil {
			return fmt.Errorf("cancel %s: %w", id, err)
		}
	}
	return nil
}

// ClosePosition flattens the symbol with a reduce-only market order on
// the opposite side. A flat position is a no-op.
func (v *Venue) ClosePosition(ctx context.Context, symbol string) (*model.Order, error) {
	pos, err := v.GetPosition(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if pos.IsFlat() {
		return nil, nil
	}

	size := pos.Size
	if size < 0 {
		size = -size
	}
	return v.CreateOrder(ctx, port.OrderRequest{
		Symbol:     symbol,
		Side:       pos.Side().Opposite(),
		Type:       model.OrderTypeMarket,
		SizeStr:    strconv.FormatFloat(size, 'f', -1, 64),
		ReduceOnly: true,
	})
}

func (v *Venue) UpdateLeverage(ctx context.Context, symbol string, leverage float64) error {
	if leverage <= 0 {
		return fmt.Errorf("extended: leverage must be positive, got %v", leverage)
	}
	return v.rest.UpdateLeverage(ctx, symbol, leverage)
}

func (v *Venue) GetLeverageInfo(ctx context.Context, symbol string) (*model.LeverageInfo, error) {
	return v.rest.GetLeverage(ctx, symbol)
}

func (v *Venue) GetAvailableSymbols(ctx context.Context) ([]string, error) {
	return v.rest.GetMarkets(ctx)
}

// Close tears down every stream connection for this venue.
func (v *Venue) Close() error {
	v.pool.CloseAll()
	return nil
}
