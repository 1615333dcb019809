package ports

import "context"

// PriceSource provides a reference price on request.
type PriceSource interface {
	// GetMarkPrice retrieves the current mark price for a given symbol.
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
}

// BalanceSource provides account balances used as liquidation inputs.
type BalanceSource interface {
	// GetAccountBalance retrieves the wallet balance for a specific asset (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (float64, error)
}

// PriceStream pushes reference price updates as they arrive.
type PriceStream interface {
	// Subscribe delivers every price update to handler until ctx is done.
	// It reconnects on its own and only returns when ctx is canceled or the
	// reconnect budget is exhausted.
	Subscribe(ctx context.Context, handler func(price float64)) error
}
