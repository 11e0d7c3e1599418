// Package rates fetches exchange rates from an external HTTP API.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var ErrNoRates = errors.New("exchange rate response contains no rates")

// Config configures the API client.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// DefaultConfig returns the defaults used when values are left empty.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://open.er-api.com/v6/latest",
		Timeout:           15 * time.Second,
		RequestsPerSecond: 1,
	}
}

// Client calls GET {BaseURL}/{base}. Requests are throttled so a burst of
// refreshes cannot exhaust the provider quota.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// latestResponse covers both common provider shapes.
type latestResponse struct {
	Result          string                     `json:"result"`
	Rates           map[string]decimal.Decimal `json:"rates"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// Latest returns the latest rates quoted against base, keyed by currency code.
func (c *Client) Latest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + "/" + url.PathEscape(base)
	if c.apiKey != "" {
		u += "?" + url.Values{"apikey": {c.apiKey}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates for %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch rates for %s: unexpected status %s: %s", base, resp.Status, strings.TrimSpace(string(body)))
	}

	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rates response: %w", err)
	}

	rates := payload.Rates
	if len(rates) == 0 {
		rates = payload.ConversionRates
	}
	if len(rates) == 0 {
		return nil, ErrNoRates
	}

	slog.DebugContext(ctx, "Fetched exchange rates", "base", base, "count", len(rates))
	return rates, nil
}
