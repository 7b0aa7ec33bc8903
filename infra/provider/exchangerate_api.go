package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amirasaad/ebanking/pkg/provider"
	"github.com/shopspring/decimal"
)

// ExchangeRateAPIConfig configures the exchangerate-api.com client.
type ExchangeRateAPIConfig struct {
	APIKey  string
	BaseURL string // e.g. https://v6.exchangerate-api.com/v6
	Timeout time.Duration
}

// ExchangeRateAPI implements provider.ExchangeRate for exchangerate-api.com v6.
type ExchangeRateAPI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ provider.ExchangeRate = (*ExchangeRateAPI)(nil)

// ExchangeRateAPIResponseV6 represents the v6 response from the ExchangeRate API
// See: https://www.exchangerate-api.com/docs/standard-requests
type ExchangeRateAPIResponseV6 struct {
	Result             string                     `json:"result"`
	TimeLastUpdateUnix int64                      `json:"time_last_update_unix"`
	TimeNextUpdateUnix int64                      `json:"time_next_update_unix"`
	BaseCode           string                     `json:"base_code"`
	ConversionRates    map[string]decimal.Decimal `json:"conversion_rates"`
	ErrorType          string                     `json:"error-type,omitempty"`
}

// NewExchangeRateAPI creates a new ExchangeRate API provider.
func NewExchangeRateAPI(cfg ExchangeRateAPIConfig, logger *slog.Logger) *ExchangeRateAPI {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExchangeRateAPI{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("provider", "exchangerate-api"),
	}
}

// Name implements provider.ExchangeRate.
func (p *ExchangeRateAPI) Name() string {
	return "exchangerate-api"
}

// GetRate implements provider.ExchangeRate.
func (p *ExchangeRateAPI) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rates, err := p.latest(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s->%s", provider.ErrUnsupportedPair, from, to)
	}
	return rate, nil
}

func (p *ExchangeRateAPI) latest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s/latest/%s", p.baseURL, p.apiKey, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	p.logger.Debug("Fetching exchange rates from API", "base", base)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf(
			"%w: API returned status %d: %s",
			provider.ErrProviderUnavailable,
			resp.StatusCode,
			string(body),
		)
	}

	var apiResp ExchangeRateAPIResponseV6
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", provider.ErrProviderUnavailable, err)
	}
	if apiResp.Result != "success" {
		if apiResp.ErrorType == "unsupported-code" {
			return nil, fmt.Errorf("%w: base %s", provider.ErrUnsupportedPair, base)
		}
		return nil, fmt.Errorf(
			"%w: API returned result=%s error=%s",
			provider.ErrProviderUnavailable,
			apiResp.Result,
			apiResp.ErrorType,
		)
	}
	return apiResp.ConversionRates, nil
}
