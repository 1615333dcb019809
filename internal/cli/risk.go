package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"hedgeTracker/internal/app"
	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/ports"
	"hedgeTracker/internal/report"
)

// streamPriceTimeout bounds how long price waits for the first streamed quote.
const streamPriceTimeout = 15 * time.Second

func (r *runner) riskCmd() *cobra.Command {
	var (
		sideFlag, pairID          string
		balanceA, balanceB, price float64
		qty, leverage, levA, levB float64
	)

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Check the liquidation risk of an intended hedge on both exchanges",
		Long: `Risk assesses the same position opened on exchange A and exchange B.
Without --price the reference price is taken from the configured price source.
Without --balance-a the balance of exchange A is read from the exchange when
API keys are configured; other missing balances use the configured default.
With --pair the recorded legs of a stored pair are checked at their own open
price, quantity and leverage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pairID != "" {
				risk, err := r.opts.Service.AssessPair(cmd.Context(), r.user, pairID,
					changed(cmd, "balance-a", balanceA), changed(cmd, "balance-b", balanceB))
				if err != nil {
					return err
				}
				writePairRisk(cmd.OutOrStdout(), risk)
				return nil
			}

			side, ok := domain.ParseSide(sideFlag)
			if !ok {
				return fmt.Errorf("%w: side must be long or short, got %q", ports.ErrInvalidInput, sideFlag)
			}
			if cmd.Flags().Changed("leverage") {
				if !cmd.Flags().Changed("leverage-a") {
					levA = leverage
				}
				if !cmd.Flags().Changed("leverage-b") {
					levB = leverage
				}
			}

			rep, err := r.opts.Service.AssessHedge(cmd.Context(), app.RiskRequest{
				Side:      side,
				BalanceA:  changed(cmd, "balance-a", balanceA),
				BalanceB:  changed(cmd, "balance-b", balanceB),
				Price:     changed(cmd, "price", price),
				Quantity:  qty,
				LeverageA: levA,
				LeverageB: levB,
			})
			if err != nil {
				return err
			}
			writeRisk(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&sideFlag, "side", "long", "position side: long or short")
	cmd.Flags().StringVar(&pairID, "pair", "", "check the recorded legs of this pair instead")
	cmd.Flags().Float64Var(&balanceA, "balance-a", 0, "account balance on exchange A")
	cmd.Flags().Float64Var(&balanceB, "balance-b", 0, "account balance on exchange B")
	cmd.Flags().Float64Var(&price, "price", 0, "entry price (default: reference price)")
	cmd.Flags().Float64Var(&qty, "qty", 0, "position quantity")
	cmd.Flags().Float64Var(&leverage, "leverage", 0, "leverage on both exchanges (default: configured)")
	cmd.Flags().Float64Var(&levA, "leverage-a", 0, "leverage on exchange A")
	cmd.Flags().Float64Var(&levB, "leverage-b", 0, "leverage on exchange B")
	return cmd
}

func writeRisk(w io.Writer, rep *app.RiskReport) {
	if rep.Price == nil {
		fmt.Fprintln(w, "Reference price: unavailable")
	} else {
		fmt.Fprintf(w, "Reference price: %s\n", report.FormatCurrency(*rep.Price))
	}
	fmt.Fprintf(w, "Side: %s  Quantity: %s\n", rep.Side, report.FormatNumber(rep.Quantity, 4))

	legs := []struct {
		name     string
		a        domain.RiskAssessment
		balance  float64
		leverage float64
	}{
		{"A", rep.A, rep.BalanceA, rep.LeverageA},
		{"B", rep.B, rep.BalanceB, rep.LeverageB},
	}
	for _, leg := range legs {
		fmt.Fprintf(w, "\nExchange %s (balance %s, leverage %sx)\n", leg.name, report.FormatCurrency(leg.balance), report.FormatNumber(leg.leverage, 0))
		if !leg.a.Computable {
			fmt.Fprintln(w, "  Cannot compute: balance, price, quantity and leverage must be positive")
			continue
		}
		fmt.Fprintf(w, "  Liquidation price: %s\n", report.FormatCurrency(*leg.a.LiquidationPrice(rep.Side)))
		fmt.Fprintf(w, "  Buffer: %s price points\n", report.FormatNumber(leg.a.SideBuffer(rep.Side), 2))
		fmt.Fprintf(w, "  Margin required: %s  Effective collateral: %s\n",
			report.FormatCurrency(leg.a.MarginRequired), report.FormatCurrency(leg.a.EffectiveCollateral))
		fmt.Fprintf(w, "  Safe: %t  Can open: %t\n", leg.a.IsSafe, leg.a.CanOpen)
	}

	fmt.Fprintln(w)
	switch {
	case rep.IsSafe && !rep.NearLiquidation:
		fmt.Fprintln(w, "Verdict: SAFE")
	case rep.IsSafe:
		fmt.Fprintln(w, "Verdict: SAFE, but close to liquidation")
	default:
		fmt.Fprintln(w, "Verdict: HIGH RISK")
	}
}

func writePairRisk(w io.Writer, risk *app.PairRisk) {
	fmt.Fprintf(w, "Pair %s\n", risk.Pair.ID)

	legs := []struct {
		name    string
		a       domain.RiskAssessment
		balance float64
		trade   domain.Trade
	}{
		{"A", risk.A, risk.BalanceA, risk.Pair.LegA},
		{"B", risk.B, risk.BalanceB, risk.Pair.LegB},
	}
	for _, leg := range legs {
		fmt.Fprintf(w, "\nExchange %s (balance %s, entry %s, quantity %s, leverage %sx)\n",
			leg.name, report.FormatCurrency(leg.balance), report.FormatCurrency(leg.trade.OpenPrice),
			report.FormatNumber(leg.trade.Quantity, 4), report.FormatNumber(leg.trade.Leverage, 0))
		if !leg.a.Computable {
			fmt.Fprintln(w, "  Cannot compute: balance, price, quantity and leverage must be positive")
			continue
		}
		fmt.Fprintf(w, "  Long liquidation: %s  Short liquidation: %s\n",
			report.FormatCurrency(*leg.a.LongLiquidationPrice), report.FormatCurrency(*leg.a.ShortLiquidationPrice))
		fmt.Fprintf(w, "  Buffer: long %s / short %s price points\n",
			report.FormatNumber(leg.a.BufferLong, 2), report.FormatNumber(leg.a.BufferShort, 2))
		fmt.Fprintf(w, "  Margin required: %s  Effective collateral: %s\n",
			report.FormatCurrency(leg.a.MarginRequired), report.FormatCurrency(leg.a.EffectiveCollateral))
		fmt.Fprintf(w, "  Safe: %t  Can open: %t\n", leg.a.IsSafe, leg.a.CanOpen)
	}

	fmt.Fprintln(w)
	if risk.IsSafe {
		fmt.Fprintln(w, "Verdict: SAFE")
	} else {
		fmt.Fprintln(w, "Verdict: HIGH RISK")
	}
}

func (r *runner) priceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Print the current reference price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			price, err := r.opts.Service.RefreshPrice(ctx)
			if errors.Is(err, ports.ErrPriceUnavailable) && r.opts.Stream != nil {
				price, err = r.firstStreamedPrice(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", report.FormatCurrency(price))
			return nil
		},
	}
}

// firstStreamedPrice subscribes to the price stream until the first quote
// arrives or streamPriceTimeout elapses.
func (r *runner) firstStreamedPrice(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, streamPriceTimeout)
	defer cancel()

	got := make(chan float64, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.opts.Stream.Subscribe(ctx, func(p float64) {
			r.opts.Service.Prices().Set(p)
			select {
			case got <- p:
				cancel()
			default:
			}
		})
	}()

	select {
	case p := <-got:
		return p, nil
	case err := <-errCh:
		select {
		case p := <-got:
			return p, nil
		default:
		}
		if err == nil {
			err = ctx.Err()
		}
		return 0, fmt.Errorf("%w: no quote received: %v", ports.ErrPriceUnavailable, err)
	case <-ctx.Done():
		select {
		case p := <-got:
			return p, nil
		default:
		}
		return 0, fmt.Errorf("%w: no quote received within %s", ports.ErrPriceUnavailable, streamPriceTimeout)
	}
}
