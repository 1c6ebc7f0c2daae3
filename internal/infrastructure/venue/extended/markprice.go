package extended

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"uniperp/internal/domain/model"
	"uniperp/internal/stream"
)

// MarkPriceAdapter decodes the public mark price stream. The stream is
// scoped by URL, one feed for all markets, so there are no subscribe
// frames either.
type MarkPriceAdapter struct {
	url string
}

// NewMarkPriceAdapter streams mark prices for every market under the
// given stream root.
func NewMarkPriceAdapter(baseURL string) *MarkPriceAdapter {
	return &MarkPriceAdapter{url: strings.TrimRight(baseURL, "/") + "/prices/mark"}
}

func (a *MarkPriceAdapter) Name() string { return Name + "-markprice" }
func (a *MarkPriceAdapter) URL() string  { return a.url }

func (a *MarkPriceAdapter) Options() stream.Options {
	return stream.Options{
		PingInterval:   0,
		ReceiveTimeout: 30 * time.Second,
		ReconnectMin:   1 * time.Second,
		ReconnectMax:   8 * time.Second,
	}
}

func (a *MarkPriceAdapter) Authenticate(ctx context.Context, tr stream.Transport) error {
	return nil
}

func (a *MarkPriceAdapter) SubscribeFrames(topics []stream.Topic) ([][]byte, error) {
	return nil, nil
}

func (a *MarkPriceAdapter) UnsubscribeFrames(topics []stream.Topic) ([][]byte, error) {
	return nil, nil
}

func (a *MarkPriceAdapter) PingFrame() []byte { return nil }

func (a *MarkPriceAdapter) Decode(raw []byte) (stream.Decoded, error) {
	var msg struct {
		Type string `json:"type"`
		Data struct {
			Market string      `json:"m"`
			Price  json.Number `json:"p"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return stream.Decoded{}, fmt.Errorf("extended mark price frame: %w", err)
	}
	if msg.Type != "MP" || msg.Data.Market == "" {
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
}
