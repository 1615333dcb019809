package binanceclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeTracker/internal/ports"
)

var (
	_ ports.PriceSource   = (*Client)(nil)
	_ ports.BalanceSource = (*Client)(nil)
	_ ports.PriceStream   = (*Client)(nil)
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{APIKey: "key", SecretKey: "secret", BaseURL: srv.URL, Logger: &mockLogger{}})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	c, err := New(Config{Logger: &mockLogger{}, UseTestnet: true})
	require.NoError(t, err)
	assert.Equal(t, baseURLTestnet, c.futuresClient.BaseURL)
	assert.Equal(t, "ETHUSDT", c.symbol)
	assert.Equal(t, 10, c.maxReconnectAttempts)

	c, err = New(Config{Logger: &mockLogger{}, Symbol: "btcusdt"})
	require.NoError(t, err)
	assert.Equal(t, baseURLProduction, c.futuresClient.BaseURL)
	assert.Equal(t, "BTCUSDT", c.symbol)
}

func TestClient_GetMarkPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/premiumIndex", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","markPrice":"3800.12000000","indexPrice":"3799.9","lastFundingRate":"0.0001","nextFundingTime":1,"time":1}`))
	})

	price, err := c.GetMarkPrice(context.Background(), "ETHUSDT")

	require.NoError(t, err)
	assert.Equal(t, 3800.12, price)
}

func TestClient_GetMarkPrice_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests"}`, ports.ErrRateLimited},
		{"bad symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, ports.ErrInvalidInput},
		{"unmapped code", http.StatusInternalServerError, `{"code":-1000,"msg":"Unknown error"}`, ports.ErrExchangeUnavailable},
		{"empty list", http.StatusOK, `[]`, ports.ErrPriceUnavailable},
		{"unparsable price", http.StatusOK, `[{"symbol":"ETHUSDT","markPrice":"n/a"}]`, ports.ErrPriceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.GetMarkPrice(context.Background(), "ETHUSDT")

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestClient_GetAccountBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "account") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"assets":[{"asset":"BNB","walletBalance":"1.5"},{"asset":"USDT","walletBalance":"1000.25"}],"positions":[]}`))
	})
	ctx := context.Background()

	balance, err := c.GetAccountBalance(ctx, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1000.25, balance)

	_, err = c.GetAccountBalance(ctx, "BTC")
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}

func TestClient_GetAccountBalance_InvalidKeys(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`))
	})

	_, err := c.GetAccountBalance(context.Background(), "USDT")

	assert.True(t, errors.Is(err, ports.ErrInvalidAPIKeys))
}

func TestClient_Ping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/ping", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	})

	assert.NoError(t, c.Ping(context.Background()))
}

func TestClient_HandleErrorContext(t *testing.T) {
	c, err := New(Config{Logger: &mockLogger{}})
	require.NoError(t, err)
	ctx := context.Background()

	assert.Nil(t, c.handleError(ctx, nil, "op"))
	assert.True(t, errors.Is(c.handleError(ctx, context.DeadlineExceeded, "op"), ports.ErrTimeout))
	assert.True(t, errors.Is(c.handleError(ctx, context.Canceled, "op"), ports.ErrContextCanceled))
	assert.True(t, errors.Is(c.handleError(ctx, errors.New("dial tcp: connection refused"), "op"), ports.ErrConnectionFailed))
	assert.True(t, errors.Is(c.handleError(ctx, errors.New("weird"), "op"), ports.ErrUnknown))
}

func TestParsePrice(t *testing.T) {
	p, err := parsePrice("108179.10")
	require.NoError(t, err)
	assert.Equal(t, 108179.10, p)

	for _, raw := range []string{"", "abc", "0", "-1"} {
		_, err := parsePrice(raw)
		assert.True(t, errors.Is(err, ports.ErrPriceUnavailable), raw)
	}
}

func TestClient_SubscribeReturnsWhenCancelled(t *testing.T) {
	c, err := New(Config{Logger: &mockLogger{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, c.Subscribe(ctx, func(float64) {}))
}
