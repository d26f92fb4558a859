package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jarrettlin/execcore/internal/broker"
	"github.com/jarrettlin/execcore/internal/domain"
)

func contractFixture() domain.Contract {
	return domain.Contract{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDoRequestSendsClientIDHeader(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Client-ID")
		w.Write([]byte(`{"ready":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, ClientID: 7}, nil, discardLogger())

	if _, err := c.Ready(t.Context()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if gotHeader != "7" {
		t.Errorf("X-Client-ID header = %q, want %q", gotHeader, "7")
	}
}

func TestPlaceOrderSendsClientOrderID(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(broker.OrderAck{PermID: 1, OrderID: 2})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil, discardLogger())

	req := broker.OrderRequest{ClientOrderID: "idem-key-123"}
	ack, err := c.PlaceOrder(t.Context(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if ack.PermID != 1 || ack.OrderID != 2 {
		t.Errorf("unexpected ack: %+v", ack)
	}
	if body["client_order_id"] != "idem-key-123" {
		t.Errorf("client_order_id = %v, want idem-key-123", body["client_order_id"])
	}
}

func TestDoRequestReturnsErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil, discardLogger())
	if err := c.ValidateContract(t.Context(), contractFixture()); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
