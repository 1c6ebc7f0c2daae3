// Package extended adapts the Extended exchange (StarkNet perp DEX) to
// the unified venue interface. The account stream authenticates with
// an X-Api-Key header and pushes a full snapshot on connect, so there
// are no subscribe frames; the server pings, the client never does.
package extended

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"uniperp/internal/domain/model"
	"uniperp/internal/stream"
)

const Name = "extended"

// Stream topics served from the account stream cache.
var (
	TopicPositions = stream.Topic{Channel: "positions"}
	TopicOrders    = stream.Topic{Channel: "orders"}
	TopicBalance   = stream.Topic{Channel: "balance"}
)

// MarkPriceTopic names the cached mark price for one market.
func MarkPriceTopic(market string) stream.Topic {
	return stream.Topic{Channel: "markPrice", Symbol: market}
}

// accountMessage is the envelope of every account-stream frame.
type accountMessage struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`
	Data struct {
		Positions []positionPayload `json:"positions"`
		Orders    []orderPayload    `json:"orders"`
		Balance   *balancePayload   `json:"balance"`
		Trades    []tradePayload    `json:"trades"`
		Market    string            `json:"m"`
		Price     json.Number       `json:"p"`
	} `json:"data"`
}

type positionPayload struct {
	Market           string      `json:"market"`
	Status           string      `json:"status"`
	Side             string      `json:"side"`
	Size             json.Number `json:"size"`
	OpenPrice        json.Number `json:"openPrice"`
	UnrealisedPnl    json.Number `json:"unrealisedPnl"`
	LiquidationPrice json.Number `json:"liquidationPrice"`
	Leverage         json.Number `json:"leverage"`
}

type orderPayload struct {
	ID          json.Number `json:"id"`
	Market      string      `json:"market"`
	Side        string      `json:"side"`
	Qty         json.Number `json:"qty"`
	FilledQty   json.Number `json:"filledQty"`
	Price       json.Number `json:"price"`
	Type        string      `json:"type"`
	Status      string      `json:"status"`
	CreatedTime int64       `json:"createdTime"`
}

type balancePayload struct {
	Balance           json.Number `json:"balance"`
	Equity            json.Number `json:"equity"`
	AvailableForTrade json.Number `json:"availableForTrade"`
	UnrealisedPnl     json.Number `json:"unrealisedPnl"`
	InitialMargin     json.Number `json:"initialMargin"`
	MarginRatio       json.Number `json:"marginRatio"`
}

type tradePayload struct {
	OrderID json.Number `json:"orderId"`
	Market  string      `json:"market"`
	Side    string      `json:"side"`
	Qty     json.Number `json:"qty"`
	Price   json.Number `json:"price"`
	Fee     json.Number `json:"fee"`
}

// AccountAdapter decodes the private account stream. It accumulates
// positions and open orders across frames because the stream sends a
// snapshot followed by deltas; the accumulated maps are published
// whole so readers always see a complete view. Only the owning
// client's receive loop calls Decode, and Authenticate runs between
// transports, so the maps need no locking.
type AccountAdapter struct {
	url    string
	header http.Header

	positions map[string]model.Position
	orders    map[string]model.Order
	lastSeq   int64
}

// NewAccountAdapter builds the account-stream adapter. baseURL is the
// venue stream root, e.g. wss://api.starknet.extended.exchange/stream.extended.exchange/v1.
func NewAccountAdapter(baseURL, apiKey string) *AccountAdapter {
	h := http.Header{}
	h.Set("X-Api-Key", apiKey)
	return &AccountAdapter{
		url:       strings.TrimRight(baseURL, "/") + "/account",
		header:    h,
		positions: make(map[string]model.Position),
		orders:    make(map[string]model.Order),
	}
}

func (a *AccountAdapter) Name() string { return Name }
func (a *AccountAdapter) URL() string  { return a.url }

func (a *AccountAdapter) Options() stream.Options {
	return stream.Options{
		PingInterval:   0, // server pings; a client ping gets the connection dropped
		ReceiveTimeout: 30 * time.Second,
		ReconnectMin:   1 * time.Second,
		ReconnectMax:   8 * time.Second,
		Header:         a.header,
	}
}

// Authenticate is a per-transport reset: the key header already
// authenticated the handshake, and the fresh connection will push a
// new snapshot, so accumulated state from the old transport is stale.
func (a *AccountAdapter) Authenticate(ctx context.Context, tr stream.Transport) error {
	a.positions = make(map[string]model.Position)
	a.orders = make(map[string]model.Order)
	a.lastSeq = 0
	return nil
}

// SubscribeFrames is empty: the account stream pushes everything on
// connect without an explicit subscription.
func (a *AccountAdapter) SubscribeFrames(topics []stream.Topic) ([][]byte, error) {
	return nil, nil
}

func (a *AccountAdapter) UnsubscribeFrames(topics []stream.Topic) ([][]byte, error) {
	return nil, nil
}

func (a *AccountAdapter) PingFrame() []byte { return nil }

func (a *AccountAdapter) Decode(raw []byte) (stream.Decoded, error) {
	var msg accountMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return stream.Decoded{}, fmt.Errorf("extended account frame: %w", err)
	}

	if msg.Seq > 0 {
		if a.lastSeq > 0 && msg.Seq != a.lastSeq+1 {
			log.Warn().Str("venue", Name).Int64("expected", a.lastSeq+1).Int64("got", msg.Seq).Msg("sequence gap")
		}
		a.lastSeq = msg.Seq
	}

	switch msg.Type {
	case "POSITION":
		return stream.Decoded{Kind: stream.KindData, Updates: []stream.Update{
			{Topic: TopicPositions, Value: a.applyPositions(msg.Data.Positions)},
		}}, nil
	case "ORDER":
		return stream.Decoded{Kind: stream.KindData, Updates: []stream.Update{
			{Topic: TopicOrders, Value: a.applyOrders(msg.Data.Orders)},
		}}, nil
	case "BALANCE":
		if msg.Data.Balance == nil {
			return stream.Decoded{Kind: stream.KindIgnore}, nil
		}
		return stream.Decoded{Kind: stream.KindData, Updates: []stream.Update{
			{Topic: TopicBalance, Value: decodeBalance(msg.Data.Balance)},
		}}, nil
	case "TRADE":
		updates := make([]stream.Update, 0, len(msg.Data.Trades))
		for _, t := range msg.Data.Trades {
			updates = append(updates, stream.Update{
				Topic: stream.Topic{Channel: "trades", Symbol: t.Market},
				Value: model.Fill{
					Venue:   Name,
					OrderID: t.OrderID.String(),
					Symbol:  t.Market,
					Side:    model.Side(strings.ToUpper(t.Side)),
					Price:   num(t.Price),
					Size:    num(t.Qty),
					Fee:     num(t.Fee),
					Ts:      time.Now().UnixMilli(),
				},
			})
		}
		return stream.Decoded{Kind: stream.KindData, Updates: updates}, nil
	case "MP":
		if msg.Data.Market == "" {
			return stream.Decoded{Kind: stream.KindIgnore}, nil
		}
		return stream.Decoded{Kind: stream.KindData, Updates: []stream.Update{
			{Topic: MarkPriceTopic(msg.Data.Market), Value: model.MarkPrice{
				Venue:    Name,
				Symbol:   msg.Data.Market,
				PriceStr: msg.Data.Price.String(),
				Price:    num(msg.Data.Price),
				Ts:       time.Now().UnixMilli(),
			}},
		}}, nil
	default:
		log.Debug().Str("venue", Name).Str("type", msg.Type).Msg("unknown message type")
		return stream.Decoded{Kind: stream.KindIgnore}, nil
	}
}

// applyPositions folds a POSITION frame into the accumulated map and
// returns a copy for the cache. CLOSED or zero-size removes the entry.
func (a *AccountAdapter) applyPositions(payloads []positionPayload) map[string]model.Position {
	for _, p := range payloads {
		if p.Market == "" {
			continue
		}
		size := num(p.Size)
		if strings.EqualFold(p.Status, "CLOSED") || size == 0 {
			delete(a.positions, p.Market)
			continue
		}
		if strings.EqualFold(p.Side, "SHORT") {
			size = -size
		}
		a.positions[p.Market] = model.Position{
			Venue:         Name,
			Symbol:        p.Market,
			Size:          size,
			EntryPrice:    num(p.OpenPrice),
			UnrealizedPnl: num(p.UnrealisedPnl),
			Leverage:      num(p.Leverage),
			UpdatedAt:     time.Now(),
		}
	}

	out := make(map[string]model.Position, len(a.positions))
	for k, v := range a.positions {
		out[k] = v
	}
	return out
}

// applyOrders folds an ORDER frame into the open-order map. Terminal
// states drop the order.
func (a *AccountAdapter) applyOrders(payloads []orderPayload) map[string]model.Order {
	for _, o := range payloads {
		id := o.ID.String()
		if id == "" {
			continue
		}
		status := strings.ToUpper(o.Status)
		switch status {
		case "FILLED", "CANCELED", "CANCELLED", "REJECTED", "EXPIRED":
			delete(a.orders, id)
			continue
		}
		a.orders[id] = model.Order{
			Venue:      Name,
			OrderID:    id,
			Symbol:     o.Market,
			Side:       model.Side(strings.ToUpper(o.Side)),
			Type:       model.OrderType(strings.ToUpper(o.Type)),
			Status:     model.OrderStatus(status),
			PriceStr:   o.Price.String(),
			Price:      num(o.Price),
			SizeStr:    o.Qty.String(),
			Size:       num(o.Qty),
			FilledSize: num(o.FilledQty),
			CreatedAt:  time.UnixMilli(o.CreatedTime),
			UpdatedAt:  time.Now(),
		}
	}

	out := make(map[string]model.Order, len(a.orders))
	for k, v := range a.orders {
		out[k] = v
	}
	return out
}

func decodeBalance(b *balancePayload) model.Balance {
	return model.Balance{
		Venue:     Name,
		Asset:     "USD",
		Total:     num(b.Equity),
		Available: num(b.AvailableForTrade),
		UpdatedAt: time.Now(),
	}
}

func num(n json.Number) float64 {
	f, _ := n.Float64()
	return f
}
