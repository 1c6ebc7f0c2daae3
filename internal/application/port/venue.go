package port

import (
	"context"

	"uniperp/internal/domain/model"
)

// OrderRequest 统一下单请求. PriceStr may be empty for market orders;
// sizes and prices are venue-native decimal strings so no precision is
// lost before the venue applies its own rounding rules.
type OrderRequest struct {
	Symbol      string
	Side        model.Side
	Type        model.OrderType
	PriceStr    string
	SizeStr     string
	ReduceOnly  bool
	TimeInForce model.TimeInForce
	ClientID    string
}

// Venue is the one interface every perpetual exchange adapter
// implements. Read paths prefer the live stream cache and fall back to
// REST when the stream has nothing yet; write paths always go through
// REST.
type Venue interface {
	Name() string

	// Trading
	CreateOrder(ctx context.Context, req OrderRequest) (*model.Order, error)
	CancelOrders(ctx context.Context, symbol string, orderIDs []string) error
	GetOpenOrders(ctx context.Context, symbol string) ([]*model.Order, error)

	// Positions
	GetPosition(ctx context.Context, symbol string) (*model.Position, error)
	ClosePosition(ctx context.Context, symbol string) (*model.Order, error)

	// Account
	GetCollateral(ctx context.Context) (*model.Balance, error)
	UpdateLeverage(ctx context.Context, symbol string, leverage float64) error
	GetLeverageInfo(ctx context.Context, symbol string) (*model.LeverageInfo, error)

	// Market data
	GetMarkPrice(ctx context.Context, symbol string) (*model.MarkPrice, error)
	GetAvailableSymbols(ctx context.Context) ([]string, error)

	// Close releases the venue's stream connections. Terminal.
	Close() error
}
