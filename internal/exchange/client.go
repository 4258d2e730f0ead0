// Package exchange converts amounts between currencies using an
// exchangerate-api compatible service.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/ticket-bot/internal/config"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// ErrUnknownCurrency is returned when the target currency has no rate.
var ErrUnknownCurrency = errors.New("exchange: unknown currency")

// Client fetches latest rates. Requests are throttled with a token bucket.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:  logger,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type latestResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// Rate returns how many units of to one unit of from buys.
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return decimal.Zero, apperrors.NewValidationError("Currency codes are required.", nil)
	}
	if !c.Enabled() {
		return decimal.Zero, apperrors.NewUnavailable("Currency conversion is not configured.", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, apperrors.NewUnavailable("Currency conversion is busy, try again shortly.", err)
	}

	endpoint := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(from))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build exchange request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, apperrors.NewUnavailable("Could not retrieve exchange rate.", err)
	}
	defer resp.Body.Close()

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, apperrors.NewUnavailable("Could not retrieve exchange rate.", err)
	}
	if body.Result != "success" {
		c.logger.Warn("exchange lookup rejected",
			zap.String("from", from),
			zap.Int("status", resp.StatusCode),
			zap.String("error_type", body.ErrorType))
		return decimal.Zero, apperrors.NewUnavailable("Could not retrieve exchange rate.", nil)
	}
	value, ok := body.ConversionRates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return decimal.NewFromFloat(value), nil
}

// Convert converts amount from one currency to another.
func (c *Client) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	r, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(r), nil
}
