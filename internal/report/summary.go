package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/hedge"
)

// WriteSummary renders the dashboard figures of a workspace as aligned text.
func WriteSummary(w io.Writer, username string, s hedge.PortfolioSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Workspace:\t%s\n", username)
	fmt.Fprintf(tw, "Pairs:\t%d\n", s.PairCount)
	fmt.Fprintf(tw, "Starting equity:\t%s\n", FormatCurrency(s.StartingEquity))
	fmt.Fprintf(tw, "Equity:\t%s\n", FormatCurrency(s.Equity))
	fmt.Fprintf(tw, "Total PnL:\t%s\n", FormatCurrency(s.TotalPnL))
	fmt.Fprintf(tw, "Total fees:\t%s\n", FormatCurrency(s.TotalFees))
	fmt.Fprintf(tw, "Volume A:\t%s / %s (%s)\n", FormatCompact(s.TotalVolumeA), FormatCompact(s.MonthlyVolumeTarget), FormatPercent(s.ProgressA))
	fmt.Fprintf(tw, "Volume B:\t%s / %s (%s)\n", FormatCompact(s.TotalVolumeB), FormatCompact(s.MonthlyVolumeTarget), FormatPercent(s.ProgressB))
	if s.PairCount > 0 {
		fmt.Fprintf(tw, "Best pair:\t%s (%s)\n", s.BestPairID, FormatCurrency(s.BestPairPnL))
		fmt.Fprintf(tw, "Worst pair:\t%s (%s)\n", s.WorstPairID, FormatCurrency(s.WorstPairPnL))
	}

	if len(s.Monthly) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "MONTH\tPAIRS\tPNL\tFEES\tVOLUME A\tVOLUME B")
		for _, m := range s.Monthly {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s (%s)\t%s (%s)\n",
				m.Month, m.PairCount, FormatCurrency(m.PnL), FormatCurrency(m.Fees),
				FormatCompact(m.VolumeA), FormatPercent(m.ProgressA),
				FormatCompact(m.VolumeB), FormatPercent(m.ProgressB))
		}
	}

	if len(s.Teams) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "TEAM\tPAIRS\tPNL\tFEES\tVOLUME")
		for _, t := range s.Teams {
			team := t.Team
			if team == "" {
				team = "-"
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
				team, t.PairCount, FormatCurrency(t.PnL), FormatCurrency(t.Fees), FormatCompact(t.Volume))
		}
	}

	return tw.Flush()
}

// WritePairs renders one line per pair with its derived totals and slippage.
func WritePairs(w io.Writer, pairs []*domain.HedgedPair) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTEAM\tCOIN\tQTY\tPNL\tFEES\tVOLUME\tSLIPPAGE")
	for _, p := range pairs {
		if p == nil {
			continue
		}
		totals := hedge.Totals(p)
		slip := hedge.Slippage(p)
		date := "-"
		if !p.Date.IsZero() {
			date = p.Date.Format(domain.DateLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, date, p.Team, p.LegA.Coin, FormatNumber(p.LegA.Quantity, 4),
			FormatCurrency(totals.TotalPnL), FormatCurrency(totals.TotalFee),
			FormatCurrency(totals.TradingVolume), FormatNumber(slip.TotalSlippage, 2))
	}
	return tw.Flush()
}
