package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jarrettlin/execcore/internal/broker"
	"github.com/jarrettlin/execcore/internal/domain"
)

// Client implements broker.Client against a gateway process that bridges
// to the actual brokerage connection (a local IB-gateway-style process, in
// the original deployment). REST handles request/response calls; the
// single WebSocket handles every streaming surface.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	ws          *wsClient
	logger      *slog.Logger
	rateLimiter domain.RateLimiter
	clientID    int

	mu      sync.Mutex
	barSubs map[domain.ContractKey]chan domain.Bar
}

// Config holds the REST base URL and WebSocket URL for the gateway.
type Config struct {
	BaseURL string
	WSURL   string
	// ClientID distinguishes this coordinator's broker session from any
	// other client connected to the same gateway process.
	ClientID int
}

// New constructs a Client. rateLimiter may be nil, in which case REST calls
// are never throttled client-side.
func New(cfg Config, rateLimiter domain.RateLimiter, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     cfg.BaseURL,
		ws:          newWSClient(cfg.WSURL),
		logger:      logger.With(slog.String("component", "broker_gateway")),
		rateLimiter: rateLimiter,
		clientID:    cfg.ClientID,
		barSubs:     make(map[domain.ContractKey]chan domain.Bar),
	}
}

// Connect dials the streaming WebSocket. Must be called before any of the
// *Stream or SubscribeBars methods.
func (c *Client) Connect(ctx context.Context) error {
	c.ws.onBar(func(b domain.Bar) {
		key := domain.ContractKey{Symbol: b.Symbol, PrimaryExchange: b.PrimaryExchange}
		c.mu.Lock()
		ch, ok := c.barSubs[key]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- b:
			default:
				c.logger.Warn("bar subscriber channel full, dropping bar", slog.String("key", key.String()))
			}
		}
	})
	return c.ws.Connect(ctx)
}

func (c *Client) Close() error {
	return c.ws.Close()
}

func (c *Client) Ready(ctx context.Context) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/ready", nil)
	if err != nil {
		return false, err
	}
	var out struct {
		Ready bool `json:"ready"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return false, fmt.Errorf("gateway: decode ready response: %w", err)
	}
	return out.Ready, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	body := map[string]any{
		"contract":        req.Contract,
		"action":          string(req.Action),
		"quantity":        req.Quantity.String(),
		"limit":           req.Limit.String(),
		"client_order_id": req.ClientOrderID,
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return broker.OrderAck{}, fmt.Errorf("gateway: place order: %w", err)
	}
	var ack broker.OrderAck
	if err := json.Unmarshal(resp, &ack); err != nil {
		return broker.OrderAck{}, fmt.Errorf("gateway: decode order ack: %w", err)
	}
	return ack, nil
}

func (c *Client) CancelOrder(ctx context.Context, permID, orderID int64) error {
	path := fmt.Sprintf("/orders/%d/%d", permID, orderID)
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("gateway: cancel order: %w", err)
	}
	return nil
}

func (c *Client) ValidateContract(ctx context.Context, contract domain.Contract) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/contracts/validate", contract)
	if err != nil {
		return fmt.Errorf("gateway: validate contract: %w", err)
	}
	return nil
}

func (c *Client) HistoricalBars(ctx context.Context, q domain.BarSeriesQuery) ([]domain.Bar, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/bars/history", q)
	if err != nil {
		return nil, fmt.Errorf("gateway: historical bars: %w", err)
	}
	var bars []domain.Bar
	if err := json.Unmarshal(resp, &bars); err != nil {
		return nil, fmt.Errorf("gateway: decode historical bars: %w", err)
	}
	return bars, nil
}

func (c *Client) SubscribeBars(ctx context.Context, key domain.ContractKey) (<-chan domain.Bar, error) {
	ch := make(chan domain.Bar, 64)
	c.mu.Lock()
	c.barSubs[key] = ch
	c.mu.Unlock()

	if err := c.ws.subscribe("bar", []string{key.String()}); err != nil {
		c.mu.Lock()
		delete(c.barSubs, key)
		c.mu.Unlock()
		return nil, fmt.Errorf("gateway: subscribe bars: %w", err)
	}
	return ch, nil
}

func (c *Client) UnsubscribeBars(key domain.ContractKey) error {
	c.mu.Lock()
	ch, ok := c.barSubs[key]
	delete(c.barSubs, key)
	c.mu.Unlock()
	if ok {
		close(ch)
	}
	return c.ws.unsubscribe("bar", []string{key.String()})
}

func (c *Client) ExecutionStream(ctx context.Context) (<-chan domain.ExecutionData, error) {
	ch := make(chan domain.ExecutionData, 256)
	c.ws.onExecution(func(e domain.ExecutionData) {
		select {
		case ch <- e:
		case <-ctx.Done():
		}
	})
	if err := c.ws.subscribe("execution", nil); err != nil {
		return nil, fmt.Errorf("gateway: subscribe executions: %w", err)
	}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (c *Client) OrderUpdateStream(ctx context.Context) (<-chan domain.OrderUpdate, error) {
	ch := make(chan domain.OrderUpdate, 256)
	c.ws.onOrderUpdate(func(u domain.OrderUpdate) {
		select {
		case ch <- u:
		case <-ctx.Done():
		}
	})
	if err := c.ws.subscribe("order_update", nil); err != nil {
		return nil, fmt.Errorf("gateway: subscribe order updates: %w", err)
	}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (c *Client) PositionStream(ctx context.Context) (<-chan broker.BrokerPosition, error) {
	ch := make(chan broker.BrokerPosition, 64)
	c.ws.onPosition(func(p BrokerPositionWire) {
		if p.End {
			close(ch)
			return
		}
		qty, _ := decimal.NewFromString(p.Quantity)
		avg, _ := decimal.NewFromString(p.AvgPrice)
		select {
		case ch <- broker.BrokerPosition{Contract: p.Contract, Quantity: qty, AvgPrice: avg}:
		case <-ctx.Done():
		}
	})
	if err := c.ws.subscribe("position", nil); err != nil {
		return nil, fmt.Errorf("gateway: subscribe positions: %w", err)
	}
	return ch, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, path); err != nil {
			return nil, fmt.Errorf("gateway: rate limit wait for %s: %w", path, err)
		}
	}

	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: marshal request: %w", err)
		}
		reader = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", fmt.Sprintf("%d", c.clientID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway: %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	return data, nil
}
