// Package gateway is a concrete broker.Client implementation talking to a
// broker gateway process over REST (order placement) and one streaming
// WebSocket connection (executions, order updates, positions, bars).
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jarrettlin/execcore/internal/domain"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// wsCommand is the subscribe/unsubscribe envelope sent to the gateway.
type wsCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel"`
	Keys    []string `json:"keys,omitempty"`
}

// executionHandler, orderUpdateHandler, positionHandler, barHandler are
// invoked from the read loop for their respective message types.
type executionHandler func(domain.ExecutionData)
type orderUpdateHandler func(domain.OrderUpdate)
type positionHandler func(BrokerPositionWire)
type barHandler func(domain.Bar)

// BrokerPositionWire is the wire shape for one row of the broker's
// position snapshot stream; End signals the snapshot is complete.
type BrokerPositionWire struct {
	Contract domain.Contract `json:"contract"`
	Quantity string          `json:"quantity"`
	AvgPrice string          `json:"avg_price"`
	End      bool            `json:"end"`
}

// wsClient manages the gateway streaming connection: reconnect-with-backoff,
// ping/pong keepalive, and subscription restoration, following the same
// shape regardless of which event types are flowing over it.
type wsClient struct {
	wsURL string
	conn  *websocket.Conn

	mu            sync.RWMutex
	closed        bool
	subscriptions []wsCommand

	handlerMu       sync.RWMutex
	execHandlers    []executionHandler
	orderHandlers   []orderUpdateHandler
	positionHandler positionHandler
	barHandlers     []barHandler

	done chan struct{}
}

func newWSClient(wsURL string) *wsClient {
	return &wsClient{wsURL: wsURL, done: make(chan struct{})}
}

func (w *wsClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("gateway/ws: %w", domain.ErrBrokerStream)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("gateway/ws: connect: %w", err)
	}
	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	for _, cmd := range w.subscriptions {
		if err := w.sendCommand(cmd); err != nil {
			return fmt.Errorf("gateway/ws: restore subscription: %w", err)
		}
	}
	return nil
}

func (w *wsClient) subscribe(channel string, keys []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("gateway/ws: not connected")
	}
	cmd := wsCommand{Type: "subscribe", Channel: channel, Keys: keys}
	if err := w.sendCommand(cmd); err != nil {
		return fmt.Errorf("gateway/ws: subscribe %s: %w", channel, err)
	}
	w.subscriptions = append(w.subscriptions, cmd)
	return nil
}

func (w *wsClient) unsubscribe(channel string, keys []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("gateway/ws: not connected")
	}
	cmd := wsCommand{Type: "unsubscribe", Channel: channel, Keys: keys}
	if err := w.sendCommand(cmd); err != nil {
		return fmt.Errorf("gateway/ws: unsubscribe %s: %w", channel, err)
	}

	removed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		removed[k] = struct{}{}
	}
	filtered := w.subscriptions[:0]
	for _, sub := range w.subscriptions {
		if sub.Channel != channel {
			filtered = append(filtered, sub)
			continue
		}
		remaining := make([]string, 0, len(sub.Keys))
		for _, k := range sub.Keys {
			if _, gone := removed[k]; !gone {
				remaining = append(remaining, k)
			}
		}
		if len(remaining) > 0 {
			sub.Keys = remaining
			filtered = append(filtered, sub)
		}
	}
	w.subscriptions = filtered
	return nil
}

func (w *wsClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return w.conn.Close()
	}
	return nil
}

func (w *wsClient) onExecution(h executionHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.execHandlers = append(w.execHandlers, h)
}

func (w *wsClient) onOrderUpdate(h orderUpdateHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.orderHandlers = append(w.orderHandlers, h)
}

func (w *wsClient) onPosition(h positionHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.positionHandler = h
}

func (w *wsClient) onBar(h barHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.barHandlers = append(w.barHandlers, h)
}

func (w *wsClient) sendCommand(cmd wsCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsClient) readLoop() {
	// Read from, and on exit close, only the connection this loop was
	// started for; a reconnect installs a new connection with its own loop.
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return
	}
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			w.reconnect()
			return
		}
		w.handleMessage(message)
	}
}

func (w *wsClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (w *wsClient) handleMessage(raw []byte) {
	var envelope struct {
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	switch envelope.Channel {
	case "execution":
		var payload struct {
			Execution domain.ExecutionData `json:"execution"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return
		}
		w.handlerMu.RLock()
		handlers := w.execHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(payload.Execution)
		}

	case "order_update":
		var payload struct {
			Update domain.OrderUpdate `json:"update"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return
		}
		w.handlerMu.RLock()
		handlers := w.orderHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(payload.Update)
		}

	case "position":
		var payload struct {
			Position BrokerPositionWire `json:"position"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return
		}
		w.handlerMu.RLock()
		h := w.positionHandler
		w.handlerMu.RUnlock()
		if h != nil {
			h(payload.Position)
		}

	case "bar":
		var payload struct {
			Bar domain.Bar `json:"bar"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return
		}
		w.handlerMu.RLock()
		handlers := w.barHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(payload.Bar)
		}
	}
}

func (w *wsClient) reconnect() {
	delay := reconnectDelay
	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()
		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
