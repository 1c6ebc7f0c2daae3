package extended

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"uniperp/internal/domain/model"
	"uniperp/internal/infrastructure/signer"
)

// APIClient Extended REST 客户端. Private endpoints carry the api key
// header plus an HMAC over timestamp+payload.
type APIClient struct {
	baseURL    string
	signer     signer.Signer
	httpClient *http.Client
}

// NewAPIClient 创建 Extended REST 客户端
func NewAPIClient(baseURL string, s signer.Signer) *APIClient {
	if baseURL == "" {
		baseURL = "https://api.starknet.extended.exchange"
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  s,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type apiEnvelope struct {
	Status string          `json:"status"`
	Error  *apiError       `json:"error"`
	Data   json.RawMessage `json:"data"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// signedRequest 发送签名请求 (payload is the JSON body or the encoded query)
func (c *APIClient) signedRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	var payload string
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = string(raw)
		reader = bytes.NewReader(raw)
	} else if query != nil {
		payload = query.Encode()
	}

	endpoint := c.baseURL + path
	if query != nil && len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("X-Api-Key", c.signer.APIKey())
	req.Header.Set("X-Api-Timestamp", timestamp)
	req.Header.Set("X-Api-Signature", c.signer.Sign(timestamp+payload))

	return c.do(req)
}

// publicRequest 发送公共接口请求
func (c *APIClient) publicRequest(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if query != nil && len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *APIClient) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extended http %d: %s", resp.StatusCode, string(raw))
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("extended response: %w", err)
	}
	if env.Error != nil {
		return nil, fmt.Errorf("extended api error %d: %s", env.Error.Code, env.Error.Message)
	}
	return env.Data, nil
}

// GetPositions 查询当前仓位 (symbol optional)
func (c *APIClient) GetPositions(ctx context.Context, symbol string) ([]*model.Position, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("market", symbol)
	}
	data, err := c.signedRequest(ctx, http.MethodGet, "/api/v1/user/positions", q, nil)
	if err != nil {
		return nil, err
	}

	var payloads []positionPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("extended positions: %w", err)
	}

	out := make([]*model.Position, 0, len(payloads))
	for _, p := range payloads {
		size := num(p.Size)
		if size == 0 {
			continue
		}
		if strings.EqualFold(p.Side, "SHORT") {
			size = -size
		}
		out = append(out, &model.Position{
			Venue:         Name,
			Symbol:        p.Market,
			Size:          size,
			EntryPrice:    num(p.OpenPrice),
			UnrealizedPnl: num(p.UnrealisedPnl),
			Leverage:      num(p.Leverage),
			UpdatedAt:     time.Now(),
		})
	}
	return out, nil
}

// GetOpenOrders 查询未完成订单
func (c *APIClient) GetOpenOrders(ctx context.Context, symbol string) ([]*model.Order, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("market", symbol)
	}
	data, err := c.signedRequest(ctx, http.MethodGet, "/api/v1/user/orders", q, nil)
	if err != nil {
		return nil, err
	}

	var payloads []orderPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("extended orders: %w", err)
	}

	out := make([]*model.Order, 0, len(payloads))
	for _, o := range payloads {
		out = append(out, &model.Order{
			Venue:      Name,
			OrderID:    o.ID.String(),
			Symbol:     o.Market,
			Side:       model.Side(strings.ToUpper(o.Side)),
			Type:       model.OrderType(strings.ToUpper(o.Type)),
			Status:     model.OrderStatus(strings.ToUpper(o.Status)),
			PriceStr:   o.Price.String(),
			Price:      num(o.Price),
			SizeStr:    o.Qty.String(),
			Size:       num(o.Qty),
			FilledSize: num(o.FilledQty),
			CreatedAt:  time.UnixMilli(o.CreatedTime),
		})
	}
	return out, nil
}

// GetBalance 查询账户余额
func (c *APIClient) GetBalance(ctx context.Context) (*model.Balance, error) {
	data, err := c.signedRequest(ctx, http.MethodGet, "/api/v1/user/balance", nil, nil)
	if err != nil {
		return nil, err
	}
	var payload balancePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("extended balance: %w", err)
	}
	b := decodeBalance(&payload)
	return &b, nil
}

type createOrderRequest struct {
	Market      string `json:"market"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	ReduceOnly  bool   `json:"reduceOnly,omitempty"`
	TimeInForce string `json:"timeInForce,omitempty"`
	ClientID    string `json:"externalId,omitempty"`
}

// CreateOrder 下单
func (c *APIClient) CreateOrder(ctx context.Context, req createOrderRequest) (*model.Order, error) {
	data, err := c.signedRequest(ctx, http.MethodPost, "/api/v1/user/order", nil, req)
	if err != nil {
		return nil, err
	}
	var o orderPayload
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("extended order response: %w", err)
	}
	return &model.Order{
		Venue:    Name,
		OrderID:  o.ID.String(),
		ClientID: req.ClientID,
		Symbol:   o.Market,
		Side:     model.Side(strings.ToUpper(o.Side)),
		Type:     model.OrderType(strings.ToUpper(o.Type)),
		Status:   model.OrderStatus(strings.ToUpper(o.Status)),
		PriceStr: o.Price.String(),
		Price:    num(o.Price),
		SizeStr:  o.Qty.String(),
		Size:     num(o.Qty),
	}, nil
}

// CancelOrder 撤单
func (c *APIClient) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.signedRequest(ctx, http.MethodDelete, "/api/v1/user/order/"+orderID, nil, nil)
	return err
}

// MassCancel 撤销某市场全部订单
func (c *APIClient) MassCancel(ctx context.Context, symbol string) error {
	q := url.Values{}
	q.Set("market", symbol)
	_, err := c.signedRequest(ctx, http.MethodDelete, "/api/v1/user/order/massCancel", q, nil)
	return err
}

// UpdateLeverage 设置杠杆
func (c *APIClient) UpdateLeverage(ctx context.Context, symbol string, leverage float64) error {
	body := map[string]string{
		"market":   symbol,
		"leverage": strconv.FormatFloat(leverage, 'f', -1, 64),
	}
	_, err := c.signedRequest(ctx, http.MethodPatch, "/api/v1/user/leverage", nil, body)
	return err
}

// GetLeverage 查询杠杆设置
func (c *APIClient) GetLeverage(ctx context.Context, symbol string) (*model.LeverageInfo, error) {
	q := url.Values{}
	q.Set("market", symbol)
	data, err := c.signedRequest(ctx, http.MethodGet, "/api/v1/user/leverage", q, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Market      string      `json:"market"`
		Leverage    json.Number `json:"leverage"`
		MaxLeverage json.Number `json:"maxLeverage"`
		MaxNotional json.Number `json:"maxPositionValue"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("extended leverage: %w", err)
	}
	return &model.LeverageInfo{
		Venue:       Name,
		Symbol:      symbol,
		Current:     num(payload.Leverage),
		Max:         num(payload.MaxLeverage),
		MaxNotional: num(payload.MaxNotional),
	}, nil
}

type marketPayload struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Stats  struct {
		MarkPrice   json.Number `json:"markPrice"`
		FundingRate json.Number `json:"fundingRate"`
	} `json:"marketStats"`
}

// GetMarkets 查询市场列表 (public)
func (c *APIClient) GetMarkets(ctx context.Context) ([]string, error) {
	data, err := c.publicRequest(ctx, "/api/v1/info/markets", nil)
	if err != nil {
		return nil, err
	}
	var payloads []marketPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("extended markets: %w", err)
	}
	out := make([]string, 0, len(payloads))
	for _, m := range payloads {
		if m.Active {
			out = append(out, m.Name)
		}
	}
	return out, nil
}

// GetMarkPrice 查询标记价格 (public)
func (c *APIClient) GetMarkPrice(ctx context.Context, symbol string) (*model.MarkPrice, error) {
	q := url.Values{}
	q.Set("market", symbol)
	data, err := c.publicRequest(ctx, "/api/v1/info/markets", q)
	if err != nil {
		return nil, err
	}
	var payloads []marketPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("extended market stats: %w", err)
	}
	for _, m := range payloads {
		if m.Name == symbol {
			return &model.MarkPrice{
				Venue:       Name,
				Symbol:      symbol,
				PriceStr:    m.Stats.MarkPrice.String(),
				Price:       num(m.Stats.MarkPrice),
				FundingRate: num(m.Stats.FundingRate),
				Ts:          time.Now().UnixMilli(),
			}, nil
		}
	}
	return nil, fmt.Errorf("extended: unknown market %q", symbol)
}
