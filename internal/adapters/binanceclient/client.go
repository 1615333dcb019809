package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hedgeTracker/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client implements ports.PriceSource, ports.BalanceSource and
// ports.PriceStream on top of the Binance USDⓈ-M futures API.
type Client struct {
	futuresClient        *futures.Client
	logger               ports.Logger
	symbol               string
	reconnectDelay       time.Duration
	maxReconnectAttempts int
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey               string
	SecretKey            string
	UseTestnet           bool
	BaseURL              string // Overrides the production/testnet URL when set
	Symbol               string // Symbol streamed by Subscribe (e.g., "ETHUSDT")
	Logger               ports.Logger
	ReconnectDelay       time.Duration // Initial reconnect delay (e.g., 1 * time.Second)
	MaxReconnectAttempts int           // Max consecutive failed attempts before giving up
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		// Public endpoints keep working; balance lookups will fail with ErrInvalidAPIKeys.
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	symbol := strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if symbol == "" {
		symbol = "ETHUSDT"
	}
	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 1 * time.Second
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	return &Client{
		futuresClient:        client,
		logger:               cfg.Logger,
		symbol:               symbol,
		reconnectDelay:       reconnectDelay,
		maxReconnectAttempts: maxAttempts,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Signature for this request is not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1121: // Illegal parameter / bad symbol
			mappedErr = ports.ErrInvalidInput
		case -2014, -2015: // API-key format invalid / invalid key, IP or permissions
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrExchangeUnavailable
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case errors.Is(err, ports.ErrPriceUnavailable), errors.Is(err, ports.ErrNotFound):
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// GetMarkPrice retrieves the current mark price for a given symbol.
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetMarkPrice"
	tickers, err := c.futuresClient.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		err := fmt.Errorf("%w: no price data returned for symbol %s", ports.ErrPriceUnavailable, symbol)
		return 0, c.handleError(ctx, err, op)
	}

	price, err := parsePrice(tickers[0].MarkPrice)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	return price, nil
}

// GetAccountBalance retrieves the wallet balance of an asset (e.g., "USDT").
func (c *Client) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	op := "GetAccountBalance"
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}

	for _, bal := range account.Assets {
		if bal.Asset == asset {
			balance, err := strconv.ParseFloat(bal.WalletBalance, 64)
			if err != nil {
				parseErr := fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.WalletBalance, asset, err)
				return 0, c.handleError(ctx, parseErr, op)
			}
			return balance, nil
		}
	}

	err = fmt.Errorf("asset %s not found in account balance: %w", asset, ports.ErrNotFound)
	return 0, c.handleError(ctx, err, op)
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	err := c.futuresClient.NewPingService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// Subscribe streams mark price updates of the configured symbol to handler
// until ctx is cancelled. Dropped connections are re-established with
// exponential backoff; after MaxReconnectAttempts consecutive failures
// ErrConnectionFailed is returned.
func (c *Client) Subscribe(ctx context.Context, handler func(price float64)) error {
	op := "SubscribeMarkPrice"
	fields := map[string]interface{}{"symbol": c.symbol}

	wsHandler := func(event *futures.WsMarkPriceEvent) {
		price, err := parsePrice(event.MarkPrice)
		if err != nil {
			c.logger.Warn(ctx, op+": Dropping unparsable mark price", map[string]interface{}{"symbol": c.symbol, "raw": event.MarkPrice})
			return
		}
		handler(price)
	}
	wsErrHandler := func(err error) {
		c.logger.Warn(ctx, op+": WebSocket error reported", map[string]interface{}{"symbol": c.symbol, "error": err.Error()})
	}

	b := &backoff.Backoff{Min: c.reconnectDelay, Max: 30 * c.reconnectDelay, Factor: 2, Jitter: true}
	for {
		if ctx.Err() != nil {
			return nil
		}

		c.logger.Info(ctx, op+": Attempting WebSocket connection...", fields)
		doneCh, stopCh, err := futures.WsMarkPriceServe(c.symbol, wsHandler, wsErrHandler)
		if err != nil {
			wrapped := c.handleError(ctx, err, op+" connection attempt")
			if int(b.Attempt()) >= c.maxReconnectAttempts-1 {
				return fmt.Errorf("%w: giving up after %d attempts: %v", ports.ErrConnectionFailed, c.maxReconnectAttempts, wrapped)
			}
			delay := b.Duration()
			c.logger.Info(ctx, op+": Connection failed, retrying...", map[string]interface{}{"symbol": c.symbol, "delay": delay.String()})
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		c.logger.Info(ctx, op+": WebSocket connection established.", fields)
		b.Reset()

		select {
		case <-doneCh:
			c.logger.Warn(ctx, op+": WebSocket connection closed unexpectedly. Reconnecting...", fields)
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				return nil
			}
		case <-ctx.Done():
			close(stopCh)
			<-doneCh
			c.logger.Info(ctx, op+": Context cancelled, WebSocket stopped.", fields)
			return nil
		}
	}
}

func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: could not parse price '%s': %v", ports.ErrPriceUnavailable, raw, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: non-positive price '%s'", ports.ErrPriceUnavailable, raw)
	}
	return price, nil
}
