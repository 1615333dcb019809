package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/report"
)

func (r *runner) pairsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairs",
		Short: "Manage hedge pairs",
	}
	cmd.AddCommand(
		r.pairsListCmd(),
		r.pairsAddCmd(),
		r.pairsEditCmd(),
		r.pairsDeleteCmd(),
		r.pairsImportCmd(),
		r.pairsExportCmd(),
	)
	return cmd
}

func (r *runner) pairsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the pairs of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := r.opts.Service.ListPairs(cmd.Context(), r.user)
			if err != nil {
				return err
			}
			return report.WritePairs(cmd.OutOrStdout(), pairs)
		},
	}
}

// legFlags binds the flags of one leg. Flags the user did not set stay nil.
type legFlags struct {
	prefix     string
	openPrice  float64
	closePrice float64
	qty        float64
	fee        float64
	pnl        float64
	leverage   float64
	openTime   string
	closeTime  string
	extID      string
}

func (l *legFlags) bind(cmd *cobra.Command) {
	p, name := l.prefix, strings.ToUpper(l.prefix)
	cmd.Flags().Float64Var(&l.openPrice, "open-"+p, 0, "open price on exchange "+name)
	cmd.Flags().Float64Var(&l.closePrice, "close-"+p, 0, "close price on exchange "+name)
	cmd.Flags().Float64Var(&l.qty, "qty-"+p, 0, "quantity on exchange "+name+" (default: --qty)")
	cmd.Flags().Float64Var(&l.fee, "fee-"+p, 0, "fee paid on exchange "+name)
	cmd.Flags().Float64Var(&l.pnl, "pnl-"+p, 0, "realized PnL on exchange "+name)
	cmd.Flags().Float64Var(&l.leverage, "leverage-"+p, 0, "leverage on exchange "+name+" (default: --leverage)")
	cmd.Flags().StringVar(&l.openTime, "open-time-"+p, "", "open time on exchange "+name+" (YYYY-MM-DDTHH:MM:SS)")
	cmd.Flags().StringVar(&l.closeTime, "close-time-"+p, "", "close time on exchange "+name)
	cmd.Flags().StringVar(&l.extID, "id-"+p, "", "exchange reference of the trade on "+name)
}

func (l *legFlags) record(cmd *cobra.Command, coin string, qty, leverage *float64) domain.TradeRecord {
	rec := domain.TradeRecord{Coin: coin, Quantity: qty, Leverage: leverage}
	l.apply(cmd, &rec)
	return rec
}

// apply overwrites the fields of rec whose leg flags were set.
func (l *legFlags) apply(cmd *cobra.Command, rec *domain.TradeRecord) {
	set := func(name string, v float64, dst **float64) {
		if p := changed(cmd, name+"-"+l.prefix, v); p != nil {
			*dst = p
		}
	}
	set("open", l.openPrice, &rec.OpenPrice)
	set("close", l.closePrice, &rec.ClosePrice)
	set("qty", l.qty, &rec.Quantity)
	set("fee", l.fee, &rec.Fee)
	set("pnl", l.pnl, &rec.PnL)
	set("leverage", l.leverage, &rec.Leverage)

	flags := cmd.Flags()
	if flags.Changed("open-time-" + l.prefix) {
		rec.OpenTime = l.openTime
	}
	if flags.Changed("close-time-" + l.prefix) {
		rec.CloseTime = l.closeTime
	}
	if flags.Changed("id-" + l.prefix) {
		rec.ExternalID = l.extID
	}
}

func changed(cmd *cobra.Command, name string, v float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func (r *runner) pairsAddCmd() *cobra.Command {
	var (
		id, date, team, note, coin string
		qty, leverage              float64
	)
	legA := &legFlags{prefix: "a"}
	legB := &legFlags{prefix: "b"}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a hedge pair",
		Example: `  hedgectl pairs add --coin ETH --qty 1 --leverage 100 \
    --open-a 3800 --close-a 3810 --fee-a 1.5 --pnl-a 10 \
    --open-b 3801 --close-b 3811 --fee-b 2 --pnl-b -10.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := domain.PairRecord{
				ID:   id,
				Date: date,
				Team: team,
				Note: note,
				LegA: legA.record(cmd, coin, changed(cmd, "qty", qty), changed(cmd, "leverage", leverage)),
				LegB: legB.record(cmd, coin, changed(cmd, "qty", qty), changed(cmd, "leverage", leverage)),
			}
			pair, err := r.opts.Service.AddPair(cmd.Context(), r.user, rec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added pair %s (%s)\n", pair.ID, pair.Date.Format(domain.DateLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "pair ID (default: generated)")
	cmd.Flags().StringVar(&date, "date", "", "trading day YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&team, "team", "", "team or trader label")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	cmd.Flags().StringVar(&coin, "coin", "", "instrument symbol of both legs")
	cmd.Flags().Float64Var(&qty, "qty", 0, "quantity of both legs")
	cmd.Flags().Float64Var(&leverage, "leverage", 0, "leverage of both legs")
	legA.bind(cmd)
	legB.bind(cmd)
	return cmd
}

func (r *runner) pairsEditCmd() *cobra.Command {
	var (
		date, team, note, coin string
		qty, leverage          float64
	)
	legA := &legFlags{prefix: "a"}
	legB := &legFlags{prefix: "b"}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a recorded hedge pair",
		Long: `Edit loads the stored pair and replaces only the fields whose flags are
set. --coin, --qty and --leverage apply to both legs unless a leg flag is set.`,
		Example: `  hedgectl pairs edit eth-1 --close-a 3812 --pnl-a 12 --note "closed late"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pair, err := r.opts.Service.GetPair(ctx, r.user, args[0])
			if err != nil {
				return err
			}

			rec := pair.Record()
			flags := cmd.Flags()
			if flags.Changed("date") {
				rec.Date = date
			}
			if flags.Changed("team") {
				rec.Team = team
			}
			if flags.Changed("note") {
				rec.Note = note
			}
			for _, leg := range []*domain.TradeRecord{&rec.LegA, &rec.LegB} {
				if flags.Changed("coin") {
					leg.Coin = coin
				}
				if p := changed(cmd, "qty", qty); p != nil {
					leg.Quantity = p
				}
				if p := changed(cmd, "leverage", leverage); p != nil {
					leg.Leverage = p
				}
			}
			legA.apply(cmd, &rec.LegA)
			legB.apply(cmd, &rec.LegB)

			updated, err := r.opts.Service.UpdatePair(ctx, r.user, pair.ID, rec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated pair %s (%s)\n", updated.ID, updated.Date.Format(domain.DateLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "trading day YYYY-MM-DD")
	cmd.Flags().StringVar(&team, "team", "", "team or trader label")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	cmd.Flags().StringVar(&coin, "coin", "", "instrument symbol of both legs")
	cmd.Flags().Float64Var(&qty, "qty", 0, "quantity of both legs")
	cmd.Flags().Float64Var(&leverage, "leverage", 0, "leverage of both legs")
	legA.bind(cmd)
	legB.bind(cmd)
	return cmd
}

func (r *runner) pairsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete pairs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := r.opts.Service.DeletePair(cmd.Context(), r.user, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted pair %s\n", id)
			}
			return nil
		},
	}
}

func (r *runner) pairsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import pairs from a YAML (or JSON) list",
		Long: `Import reads a list of pairs. Each entry has the fields date, team, note,
legA and legB; a leg has openPrice, closePrice, openTime, closeTime, quantity,
coin, fee, pnl, leverage and externalId. Invalid or duplicate entries are
reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := readPairRecords(args[0])
			if err != nil {
				return err
			}
			result, err := r.opts.Service.ImportPairs(cmd.Context(), r.user, recs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range result.Failed {
				fmt.Fprintf(out, "Skipped entry %d: %v\n", f.Index+1, f.Err)
			}
			fmt.Fprintf(out, "Imported %d of %d pairs\n", len(result.Imported), len(recs))
			return nil
		},
	}
}

// readPairRecords parses a YAML list of pairs. JSON is valid YAML and is
// accepted as well.
func readPairRecords(path string) ([]domain.PairRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	var recs []domain.PairRecord
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse import file %s: %w", path, err)
	}
	return recs, nil
}

func (r *runner) pairsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Export pairs as CSV, one row per leg (use - for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := r.opts.Service.ListPairs(cmd.Context(), r.user)
			if err != nil {
				return err
			}
			if args[0] == "-" {
				return report.WritePairsCSV(cmd.OutOrStdout(), pairs)
			}
			if err := report.WritePairsToCSV(pairs, args[0]); err != nil {
				return fmt.Errorf("export pairs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d pairs to %s\n", len(pairs), args[0])
			return nil
		},
	}
}
