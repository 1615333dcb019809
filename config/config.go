package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hedgeTracker/internal/adapters/logger"
	"hedgeTracker/internal/hedge"
)

// Reference price sources.
const (
	PriceSourceBinance = "binance"
	PriceSourceCoinCap = "coincap"
	PriceSourceNone    = "none"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Reference price
	PriceSource  string // binance, coincap or none
	PriceSymbol  string // e.g., "ETHUSDT" for Binance
	CoinCapURL   string
	CoinCapAsset string // e.g., "ethereum"

	// Workspace defaults
	DefaultUser         string
	MonthlyVolumeTarget float64 // Per-exchange notional volume target
	StartingEquity      float64

	// Risk policy
	DefaultLeverage    float64
	DefaultBalance     float64 // Used when a balance is neither given nor fetched
	MaintenancePercent float64 // e.g., 0.5 for 0.5%
	SafetyPercent      float64 // e.g., 30 for 30%
	MinSafeDistance    float64 // Price points; 0 disables the near-liquidation warning

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // text or json

	// HTTP
	HTTPAddr string

	// Connection Settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Reference price
	cfg.PriceSource = strings.ToLower(getEnv("PRICE_SOURCE", PriceSourceBinance))
	switch cfg.PriceSource {
	case PriceSourceBinance, PriceSourceCoinCap, PriceSourceNone:
	default:
		errs = append(errs, fmt.Sprintf("PRICE_SOURCE must be one of binance, coincap, none (got %q)", cfg.PriceSource))
	}
	cfg.PriceSymbol = strings.ToUpper(getEnv("PRICE_SYMBOL", "ETHUSDT"))
	cfg.CoinCapURL = getEnv("COINCAP_WS_URL", "wss://ws.coincap.io/prices")
	cfg.CoinCapAsset = strings.ToLower(getEnv("COINCAP_ASSET", "ethereum"))

	// Workspace defaults
	cfg.DefaultUser = getEnv("DEFAULT_USER", "default")

	cfg.MonthlyVolumeTarget, err = getEnvAsFloatRequired("MONTHLY_VOLUME_TARGET", 500000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MONTHLY_VOLUME_TARGET: %v", err))
	} else if cfg.MonthlyVolumeTarget <= 0 {
		errs = append(errs, "MONTHLY_VOLUME_TARGET must be positive")
	}

	cfg.StartingEquity, err = getEnvAsFloatRequired("STARTING_EQUITY", 100000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STARTING_EQUITY: %v", err))
	} else if cfg.StartingEquity < 0 {
		errs = append(errs, "STARTING_EQUITY cannot be negative")
	}

	// Risk policy
	cfg.DefaultLeverage, err = getEnvAsFloatRequired("DEFAULT_LEVERAGE", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_LEVERAGE: %v", err))
	} else if cfg.DefaultLeverage <= 0 {
		errs = append(errs, "DEFAULT_LEVERAGE must be positive")
	}

	cfg.DefaultBalance, err = getEnvAsFloatRequired("DEFAULT_BALANCE", 1000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_BALANCE: %v", err))
	} else if cfg.DefaultBalance < 0 {
		errs = append(errs, "DEFAULT_BALANCE cannot be negative")
	}

	cfg.MaintenancePercent, err = getEnvAsFloatRequired("MAINTENANCE_PERCENT", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAINTENANCE_PERCENT: %v", err))
	} else if cfg.MaintenancePercent < 0 || cfg.MaintenancePercent >= 100 {
		errs = append(errs, "MAINTENANCE_PERCENT must be between 0 and 100")
	}

	cfg.SafetyPercent, err = getEnvAsFloatRequired("SAFETY_PERCENT", 30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SAFETY_PERCENT: %v", err))
	} else if cfg.SafetyPercent < 0 || cfg.SafetyPercent >= 100 {
		errs = append(errs, "SAFETY_PERCENT must be between 0 and 100")
	}

	if cfg.MaintenancePercent+cfg.SafetyPercent >= 100 {
		errs = append(errs, "MAINTENANCE_PERCENT plus SAFETY_PERCENT must leave some collateral")
	}

	cfg.MinSafeDistance, err = getEnvAsFloatRequired("MIN_SAFE_DISTANCE", 120)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_SAFE_DISTANCE: %v", err))
	} else if cfg.MinSafeDistance < 0 {
		errs = append(errs, "MIN_SAFE_DISTANCE cannot be negative")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/hedge_tracker.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be text or json")
	}

	// HTTP
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Connection Settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// PortfolioConfig returns the aggregation defaults for new workspaces.
func (c *Config) PortfolioConfig() hedge.PortfolioConfig {
	return hedge.PortfolioConfig{
		StartingEquity:      c.StartingEquity,
		MonthlyVolumeTarget: c.MonthlyVolumeTarget,
	}
}

// RiskConfig returns the liquidation calculator policy.
func (c *Config) RiskConfig() hedge.RiskConfig {
	return hedge.RiskConfig{
		MaintenancePercent: c.MaintenancePercent,
		SafetyPercent:      c.SafetyPercent,
		MinSafeDistance:    c.MinSafeDistance,
	}
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
