package model

import "time"

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the reducing side for a position opened on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType 订单类型
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// TimeInForce 订单有效方式
type TimeInForce string

const (
	TimeInForceGTC      TimeInForce = "GTC"
	TimeInForceIOC      TimeInForce = "IOC"
	TimeInForcePostOnly TimeInForce = "POST_ONLY"
)

// OrderStatus as reported by a venue, normalized.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// Order 统一订单视图 across venues. Prices and sizes stay as the
// venue-native decimal strings; Price/Size hold best-effort parses.
type Order struct {
	Venue       string
	OrderID     string
	ClientID    string
	Symbol      string
	Side        Side
	Type        OrderType
	Status      OrderStatus
	PriceStr    string
	Price       float64
	SizeStr     string
	Size        float64
	FilledSize  float64
	ReduceOnly  bool
	TimeInForce TimeInForce
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOpen reports whether the order can still trade.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// Position 统一仓位视图. Size is signed: positive long, negative short.
type Position struct {
	Venue         string
	Symbol        string
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnl float64
	Leverage      float64
	UpdatedAt     time.Time
}

// IsFlat reports whether there is no exposure.
func (p *Position) IsFlat() bool { return p.Size == 0 }

// Side derives the direction from the signed size.
func (p *Position) Side() Side {
	if p.Size < 0 {
		return SideSell
	}
	return SideBuy
}

// Balance 账户余额（保证金币种计）
type Balance struct {
	Venue     string
	Asset     string
	Total     float64
	Available float64
	UpdatedAt time.Time
}

// LeverageInfo reports the configured and maximum leverage for a
// symbol on one venue.
type LeverageInfo struct {
	Venue       string
	Symbol      string
	Current     float64
	Max         float64
	MaxNotional float64
}

// MarkPrice 标记价格
type MarkPrice struct {
	Venue       string
	Symbol      string
	PriceStr    string
	Price       float64
	FundingRate float64
	Ts          int64 // unix ms
}

// Fill 成交记录
type Fill struct {
	Venue   string
	OrderID string
	Symbol  string
	Side    Side
	Price   float64
	Size    float64
	Fee     float64
	Ts      int64 // unix ms
}

// ConnEvent records one lifecycle transition of a venue stream, for
// connectivity auditing.
type ConnEvent struct {
	Venue string
	State string
	Ts    int64 // unix ms
}
