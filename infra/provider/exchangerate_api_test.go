package provider

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirasaad/ebanking/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *ExchangeRateAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewExchangeRateAPI(ExchangeRateAPIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v6/",
		Timeout: time.Second,
	}, slog.Default())
}

func TestExchangeRateAPI_GetRate(t *testing.T) {
	var gotPath string
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"result": "success",
			"base_code": "USD",
			"conversion_rates": {"USD": 1, "GBP": 0.7891, "EUR": 0.9213}
		}`))
	})

	rate, err := api.GetRate(context.Background(), "USD", "GBP")
	require.NoError(t, err)
	assert.Equal(t, "0.7891", rate.String())
	assert.Equal(t, "/v6/test-key/latest/USD", gotPath)
	assert.Equal(t, "exchangerate-api", api.Name())

	_, err = api.GetRate(context.Background(), "USD", "XYZ")
	assert.ErrorIs(t, err, provider.ErrUnsupportedPair)
}

func TestExchangeRateAPI_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusBadGateway, "bad gateway", provider.ErrProviderUnavailable},
		{"quota", http.StatusOK, `{"result":"error","error-type":"quota-reached"}`, provider.ErrProviderUnavailable},
		{"unsupported base", http.StatusOK, `{"result":"error","error-type":"unsupported-code"}`, provider.ErrUnsupportedPair},
		{"garbage", http.StatusOK, `not json`, provider.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := api.GetRate(context.Background(), "USD", "GBP")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
