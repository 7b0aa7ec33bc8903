// Package testutils runs the HTTP surface on in-memory infrastructure for
// handler tests.
package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	infra_eventbus "github.com/amirasaad/ebanking/infra/eventbus"
	infra_provider "github.com/amirasaad/ebanking/infra/provider"
	"github.com/amirasaad/ebanking/infra/repository/memory"
	"github.com/amirasaad/ebanking/pkg/app"
	"github.com/amirasaad/ebanking/pkg/config"
	"github.com/amirasaad/ebanking/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Config returns an application config suitable for tests.
func Config() *config.App {
	return &config.App{
		Env:  "test",
		Auth: &config.Auth{Jwt: &config.Jwt{Secret: "test-secret", Expiry: time.Hour}},
		Broker: &config.Broker{
			Driver:         "memory",
			Topic:          "transactions",
			GroupID:        "transaction-persister",
			PublishTimeout: 2 * time.Second,
			Workers:        2,
			Partitions:     3,
			DLQEnabled:     true,
		},
		Query:     &config.Query{MinYear: 2020, MaxYear: 2030},
		RateLimit: &config.RateLimit{MaxRequests: 10000, Window: time.Minute},
	}
}

// Deps returns in-memory dependencies: a memory log, a memory store and
// the static rate table.
func Deps() *app.Deps {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	log := infra_eventbus.NewWithMemory(3, logger)
	return &app.Deps{
		Log:     log,
		Store:   memory.NewTransactionStore(),
		Rates:   infra_provider.NewConverter(infra_provider.DefaultStaticRates(), nil, time.Minute, logger),
		Logger:  logger,
		Closers: []func() error{log.Close},
	}
}

// Env is a running application: consumer workers plus the fiber app.
type Env struct {
	t     testing.TB
	App   *app.App
	Fiber *fiber.App
}

// NewEnv starts an Env on in-memory dependencies.
func NewEnv(t testing.TB, cfg *config.App) *Env {
	return NewEnvWithDeps(t, cfg, Deps())
}

// NewEnvWithDeps starts an Env on deps. Workers stop and deps are closed
// when the test finishes.
func NewEnvWithDeps(t testing.TB, cfg *config.App, deps *app.Deps) *Env {
	t.Helper()
	a, err := app.New(deps, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = deps.Close()
	})
	return &Env{t: t, App: a, Fiber: webapi.SetupApp(a)}
}

// MakeRequest is a helper for making HTTP requests in tests
func (e *Env) MakeRequest(method, path, body, token string) *http.Response {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return e.MakeRequestWithHeaders(method, path, body, headers)
}

// MakeRequestWithHeaders sends a request with extra headers. A non-empty
// body is sent as JSON.
func (e *Env) MakeRequestWithHeaders(method, path, body string, headers map[string]string) *http.Response {
	e.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.Fiber.Test(req, -1)
	require.NoError(e.t, err)
	return resp
}

// Token issues a bearer token for customerID.
func (e *Env) Token(customerID string) string {
	e.t.Helper()
	token, err := e.App.TokenService.Generate(customerID)
	require.NoError(e.t, err)
	return token
}

// WaitForPersisted blocks until the store holds n transactions for
// customerID in the month of year.
func (e *Env) WaitForPersisted(customerID string, year, month, n int) {
	e.t.Helper()
	require.Eventually(e.t, func() bool {
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		all, err := e.App.Deps.Store.ListByCustomerAndPeriod(
			context.Background(), customerID, start, start.AddDate(0, 1, -1))
		return err == nil && len(all) == n
	}, 5*time.Second, 10*time.Millisecond)
}

// DecodeJSON decodes and closes the response body.
func DecodeJSON[T any](t testing.TB, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close() //nolint: errcheck
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// E2ETestSuite provides a test suite with a running application on
// in-memory infrastructure.
type E2ETestSuite struct {
	suite.Suite
	*Env
}

// SetupSuite starts the application.
func (s *E2ETestSuite) SetupSuite() {
	s.Env = NewEnv(s.T(), Config())
}

// BeforeTest points the request helpers at the running test.
func (s *E2ETestSuite) BeforeTest(_, _ string) {
	s.Env.t = s.T()
}
