// Package backpack adapts the Backpack exchange public market-data
// stream. Subscriptions use explicit SUBSCRIBE/UNSUBSCRIBE frames per
// stream name; the server pings every 60s and the transport answers,
// so the client sends no pings of its own.
package backpack

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"uniperp/internal/domain/model"
	"uniperp/internal/stream"
)

const Name = "backpack"

// MarkPriceTopic names the cached mark price for one symbol, e.g.
// SOL_USDC_PERP.
func MarkPriceTopic(symbol string) stream.Topic {
	return stream.Topic{Channel: "markPrice", Symbol: symbol}
}

// Adapter decodes the public stream. Depth streams exist on the wire
// but are not consumed here; their frames are ignored.
type Adapter struct {
	url string
}

func NewAdapter(wsURL string) *Adapter {
	if wsURL == "" {
		wsURL = "wss://ws.backpack.exchange"
	}
	return &Adapter{url: wsURL}
}

func (a *Adapter) Name() string { return Name }
func (a *Adapter) URL() string  { return a.url }

func (a *Adapter) Options() stream.Options {
	return stream.Options{
		PingInterval:   0, // server pings every 60s
		ReceiveTimeout: 90 * time.Second,
		ReconnectMin:   500 * time.Millisecond,
		ReconnectMax:   30 * time.Second,
	}
}

func (a *Adapter) Authenticate(ctx context.Context, tr stream.Transport) error {
	return nil
}

type controlFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// SubscribeFrames emits one SUBSCRIBE frame per topic.
func (a *Adapter) SubscribeFrames(topics []stream.Topic) ([][]byte, error) {
	return frames("SUBSCRIBE", topics)
}

func (a *Adapter) UnsubscribeFrames(topics []stream.Topic) ([][]byte, error) {
	return frames("UNSUBSCRIBE", topics)
}

func frames(method string, topics []stream.Topic) ([][]byte, error) {
	out := make([][]byte, 0, len(topics))
	for _, t := range topics {
		raw, err := json.Marshal(controlFrame{Method: method, Params: []string{t.String()}})
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (a *Adapter) PingFrame() []byte { return nil }

// streamMessage wraps every data frame: {"stream":"markPrice.X","data":{...}}
type streamMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Event       string      `json:"e"`
		Symbol      string      `json:"s"`
		Price       json.Number `json:"p"`
		IndexPrice  json.Number `json:"i"`
		FundingRate json.Number `json:"f"`
		NextFunding int64       `json:"n"`
	} `json:"data"`
}

func (a *Adapter) Decode(raw []byte) (stream.Decoded, error) {
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return stream.Decoded{}, fmt.Errorf("backpack frame: %w", err)
	}

	if msg.Data.Event != "markPrice" || msg.Data.Symbol == "" {
		// Subscription acks and depth frames land here.
		return stream.Decoded{Kind: stream.KindIgnore}, nil
	}

	price, _ := msg.Data.Price.Float64()
	funding, _ := msg.Data.FundingRate.Float64()
	return stream.Decoded{Kind: stream.KindData, Updates: []stream.Update{
		{Topic: MarkPriceTopic(msg.Data.Symbol), Value: model.MarkPrice{
			Venue:       Name,
			Symbol:      msg.Data.Symbol,
			PriceStr:    msg.Data.Price.String(),
			Price:       price,
			FundingRate: funding,
			Ts:          time.Now().UnixMilli(),
		}},
	}}, nil
}
