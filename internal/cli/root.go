package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hedgeTracker/internal/app"
	"hedgeTracker/internal/metrics"
	"hedgeTracker/internal/ports"
	"hedgeTracker/internal/report"
)

// Options carries the wired application into the command tree.
type Options struct {
	Service  *app.HedgeService
	Logger   ports.Logger
	Stream   ports.PriceStream // Optional live price feed
	Metrics  *metrics.Metrics  // Optional, exposed by serve
	HTTPAddr string
}

type runner struct {
	opts Options
	user string
}

// NewRootCmd builds the hedgectl command tree.
func NewRootCmd(opts Options) *cobra.Command {
	r := &runner{opts: opts}

	root := &cobra.Command{
		Use:   "hedgectl",
		Short: "Track hedged trade pairs across two exchanges",
		Long: `hedgectl records pairs of offsetting trades executed on two exchanges and
reports realized PnL, fees, slippage, traded volume against a monthly target
and the liquidation risk of an intended hedge.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&r.user, "user", "u", "", "workspace to operate on (default: configured default user)")

	root.AddCommand(
		r.loginCmd(),
		r.pairsCmd(),
		r.summaryCmd(),
		r.riskCmd(),
		r.priceCmd(),
		r.serveCmd(),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context, opts Options) error {
	return NewRootCmd(opts).ExecuteContext(ctx)
}

func (r *runner) loginCmd() *cobra.Command {
	var target, equity float64

	cmd := &cobra.Command{
		Use:   "login [user]",
		Short: "Create or load a workspace and optionally change its settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := r.user
			if len(args) == 1 {
				user = args[0]
			}
			ctx := cmd.Context()

			ws, err := r.opts.Service.Login(ctx, user)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("target") {
				if ws, err = r.opts.Service.SetMonthlyTarget(ctx, ws.Username, target); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("equity") {
				if ws, err = r.opts.Service.SetStartingEquity(ctx, ws.Username, equity); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Workspace %s: monthly target %s, starting equity %s\n",
				ws.Username, report.FormatCurrency(ws.MonthlyVolumeTarget), report.FormatCurrency(ws.StartingEquity))
			return nil
		},
	}
	cmd.Flags().Float64Var(&target, "target", 0, "monthly volume target per exchange")
	cmd.Flags().Float64Var(&equity, "equity", 0, "starting equity")
	return cmd
}

func (r *runner) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show portfolio totals, equity, volume progress and breakdowns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := r.opts.Service.Summary(cmd.Context(), r.user)
			if err != nil {
				return err
			}
			return report.WriteSummary(cmd.OutOrStdout(), sum.Workspace.Username, sum.PortfolioSummary)
		},
	}
}
