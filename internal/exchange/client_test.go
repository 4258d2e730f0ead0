package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ExchangeConfig{
		BaseURL:           srv.URL,
		APIKey:            "key",
		RequestsPerMinute: 600,
		TimeoutSeconds:    2,
	}, zap.NewNop())
}

func TestConvert(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/key/latest/USD" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{"USD":1,"IDR":15500.5}}`))
	})
	got, err := c.Convert(context.Background(), decimal.NewFromInt(2), "usd", "idr")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("31001")) {
		t.Fatalf("expected 31001, got %s", got)
	}
}

func TestConvertUnknownCurrency(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{"USD":1}}`))
	})
	_, err := c.Convert(context.Background(), decimal.NewFromInt(1), "USD", "XXX")
	if !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected unknown currency, got %v", err)
	}
}

func TestConvertProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"result":"error","error-type":"invalid-key"}`))
	})
	_, err := c.Convert(context.Background(), decimal.NewFromInt(1), "USD", "EUR")
	if !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestConvertWithoutKey(t *testing.T) {
	c := NewClient(config.ExchangeConfig{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	if c.Enabled() {
		t.Fatalf("client without key must be disabled")
	}
	if _, err := c.Convert(context.Background(), decimal.NewFromInt(1), "USD", "EUR"); !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
