package main

import (
	"context"
	"log" // Use standard log only for fatal errors before the logger is set up
	"os"
	"os/signal"
	"syscall"

	"hedgeTracker/config"
	"hedgeTracker/internal/adapters/binanceclient"
	"hedgeTracker/internal/adapters/coincap"
	"hedgeTracker/internal/adapters/logger"
	"hedgeTracker/internal/adapters/sqlite"
	"hedgeTracker/internal/app"
	"hedgeTracker/internal/cli"
	"hedgeTracker/internal/metrics"
	"hedgeTracker/internal/ports"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogFormat, cfg.LogLevel)
	if zl, ok := appLogger.(*logger.ZapLogger); ok {
		defer zl.Sync()
	}
	appLogger.Debug(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		return 1
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize the reference price adapters.
	// Interfaces stay nil unless an adapter is configured.
	var (
		prices   ports.PriceSource
		balances ports.BalanceSource
		stream   ports.PriceStream
	)
	switch cfg.PriceSource {
	case config.PriceSourceBinance:
		client, err := binanceclient.New(binanceclient.Config{
			APIKey:               cfg.APIKey,
			SecretKey:            cfg.SecretKey,
			UseTestnet:           cfg.IsTestnet,
			Symbol:               cfg.PriceSymbol,
			Logger:               appLogger,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
			return 1
		}
		prices, stream = client, client
		if cfg.APIKey != "" && cfg.SecretKey != "" {
			balances = client
		}
	case config.PriceSourceCoinCap:
		cc, err := coincap.New(coincap.Config{
			URL:                  cfg.CoinCapURL,
			Asset:                cfg.CoinCapAsset,
			Logger:               appLogger,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize CoinCap stream")
			return 1
		}
		stream = cc
	}

	// 5. Initialize Application Service
	service, err := app.NewHedgeService(cfg, appLogger, repo, repo, prices, balances)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize hedge service")
		return 1
	}

	// 6. Run the command tree until it finishes or the process is signalled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = cli.Execute(ctx, cli.Options{
		Service:  service,
		Logger:   appLogger,
		Stream:   stream,
		Metrics:  metrics.New(),
		HTTPAddr: cfg.HTTPAddr,
	})
	if err != nil {
		return 1
	}
	return 0
}
