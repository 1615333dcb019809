package coincap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeTracker/internal/ports"
)

var _ ports.PriceStream = (*Stream)(nil)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestNew(t *testing.T) {
	_, err := New(Config{Asset: "ethereum"})
	assert.Error(t, err)

	_, err = New(Config{Logger: &mockLogger{}})
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))

	s, err := New(Config{Logger: &mockLogger{}, Asset: " Ethereum "})
	require.NoError(t, err)
	assert.Equal(t, "wss://ws.coincap.io/prices?assets=ethereum", s.URL())
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		want    float64
		wantOK  bool
		wantErr bool
	}{
		{"price for asset", `{"ethereum":"3800.12","bitcoin":"108179.10"}`, 3800.12, true, false},
		{"other asset only", `{"bitcoin":"108179.10"}`, 0, false, false},
		{"not json", `hello`, 0, false, true},
		{"bad number", `{"ethereum":"abc"}`, 0, false, true},
		{"zero price", `{"ethereum":"0"}`, 0, false, true},
		{"infinite price", `{"ethereum":"Inf"}`, 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseMessage([]byte(tt.msg), "ethereum")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStream_Subscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ethereum", r.URL.Query().Get("assets"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range []string{`{"ethereum":"3800.10"}`, `garbage`, `{"bitcoin":"1"}`, `{"ethereum":"3801.50"}`} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s, err := New(Config{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Asset:          "ethereum",
		Logger:         &mockLogger{},
		ReconnectDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var prices []float64
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Subscribe(ctx, func(p float64) {
			mu.Lock()
			prices = append(prices, p)
			n := len(prices)
			mu.Unlock()
			if n == 2 {
				cancel()
			}
		})
	}()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("Subscribe did not return after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{3800.10, 3801.50}, prices)
}

func TestStream_SubscribeGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s, err := New(Config{
		URL:                  "ws" + strings.TrimPrefix(srv.URL, "http"),
		Asset:                "ethereum",
		Logger:               &mockLogger{},
		ReconnectDelay:       time.Millisecond,
		MaxReconnectAttempts: 3,
	})
	require.NoError(t, err)

	err = s.Subscribe(context.Background(), func(float64) {})

	assert.True(t, errors.Is(err, ports.ErrConnectionFailed), "got %v", err)
}
