// Package coincap streams reference prices from the CoinCap websocket feed.
package coincap

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"hedgeTracker/internal/ports"
)

// DefaultURL is the public CoinCap price feed.
const DefaultURL = "wss://ws.coincap.io/prices"

// Config holds the stream settings.
type Config struct {
	URL                  string // Feed URL without the assets query
	Asset                string // CoinCap asset id, e.g. "ethereum"
	Logger               ports.Logger
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // Consecutive failed dials before giving up
	HandshakeTimeout     time.Duration
}

// Stream implements ports.PriceStream for one CoinCap asset.
type Stream struct {
	url         string
	asset       string
	logger      ports.Logger
	dialer      *websocket.Dialer
	minDelay    time.Duration
	maxAttempts int
}

// New creates a stream for cfg.Asset.
func New(cfg Config) (*Stream, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CoinCap stream")
	}
	asset := strings.ToLower(strings.TrimSpace(cfg.Asset))
	if asset == "" {
		return nil, fmt.Errorf("%w: CoinCap asset is required", ports.ErrConfigurationError)
	}
	raw := cfg.URL
	if raw == "" {
		raw = DefaultURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CoinCap URL %q: %v", ports.ErrConfigurationError, raw, err)
	}
	q := u.Query()
	q.Set("assets", asset)
	u.RawQuery = q.Encode()

	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	attempts := cfg.MaxReconnectAttempts
	if attempts <= 0 {
		attempts = 10
	}
	handshake := cfg.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}

	return &Stream{
		url:         u.String(),
		asset:       asset,
		logger:      cfg.Logger,
		dialer:      &websocket.Dialer{HandshakeTimeout: handshake},
		minDelay:    delay,
		maxAttempts: attempts,
	}, nil
}

// URL returns the full feed URL including the asset query.
func (s *Stream) URL() string {
	return s.url
}

// Subscribe delivers every price update of the asset to handler until ctx is
// cancelled. Dropped connections are redialed with exponential backoff.
func (s *Stream) Subscribe(ctx context.Context, handler func(price float64)) error {
	b := &backoff.Backoff{Min: s.minDelay, Max: 30 * s.minDelay, Factor: 2, Jitter: true}
	fields := map[string]interface{}{"asset": s.asset, "url": s.url}
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if failures >= s.maxAttempts {
				s.logger.Error(ctx, err, "CoinCap stream: max reconnection attempts exceeded, giving up", fields)
				return fmt.Errorf("%w: CoinCap dial failed %d times: %v", ports.ErrConnectionFailed, failures, err)
			}
			delay := b.Duration()
			s.logger.Warn(ctx, "CoinCap stream: dial failed, retrying", map[string]interface{}{"asset": s.asset, "attempt": failures, "delay": delay.String(), "error": err.Error()})
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}

		s.logger.Info(ctx, "CoinCap stream connected", fields)
		failures = 0
		b.Reset()

		err = s.readLoop(ctx, conn, handler)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn(ctx, "CoinCap stream disconnected, reconnecting", map[string]interface{}{"asset": s.asset, "error": fmt.Sprint(err)})
		if !sleep(ctx, b.Duration()) {
			return nil
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn, handler func(float64)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		price, ok, err := ParseMessage(msg, s.asset)
		if err != nil {
			s.logger.Debug(ctx, "CoinCap stream: ignoring malformed message", map[string]interface{}{"asset": s.asset, "error": err.Error()})
			continue
		}
		if ok {
			handler(price)
		}
	}
}

// ParseMessage extracts the price of asset from a feed message such as
// {"ethereum":"3800.12"}. ok is false when the message carries no price for
// asset.
func ParseMessage(msg []byte, asset string) (price float64, ok bool, err error) {
	var prices map[string]string
	if err := json.Unmarshal(msg, &prices); err != nil {
		return 0, false, fmt.Errorf("decode price message: %w", err)
	}
	raw, found := prices[asset]
	if !found {
		return 0, false, nil
	}
	price, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: invalid price %q for %s", ports.ErrPriceUnavailable, raw, asset)
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return 0, false, fmt.Errorf("%w: non-positive price %q for %s", ports.ErrPriceUnavailable, raw, asset)
	}
	return price, true, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
