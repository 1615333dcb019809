package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/hedge"
)

var csvHeader = []string{
	"pair_id", "date", "team", "leg", "coin", "external_id",
	"open_time", "close_time", "open_price", "close_price", "quantity", "leverage", "fee", "pnl",
	"pair_pnl", "pair_fee", "pair_volume", "open_slippage", "close_slippage", "note",
}

// WritePairsCSV writes one row per leg. Every row repeats the pair aggregates
// so the file can be filtered by leg without losing them.
func WritePairsCSV(w io.Writer, pairs []*domain.HedgedPair) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range pairs {
		if p == nil {
			continue
		}
		totals := hedge.Totals(p)
		slip := hedge.Slippage(p)
		date := ""
		if !p.Date.IsZero() {
			date = p.Date.Format(domain.DateLayout)
		}

		for _, leg := range []domain.Leg{domain.LegA, domain.LegB} {
			t := p.Leg(leg)
			row := []string{
				p.ID,
				date,
				p.Team,
				string(leg),
				t.Coin,
				t.ExternalID,
				formatTime(t.OpenTime),
				formatTime(t.CloseTime),
				formatFloat(t.OpenPrice),
				formatFloat(t.ClosePrice),
				formatFloat(t.Quantity),
				formatFloat(t.Leverage),
				formatFloat(t.Fee),
				formatFloat(t.PnL),
				formatFloat(totals.TotalPnL),
				formatFloat(totals.TotalFee),
				formatFloat(totals.TradingVolume),
				formatFloat(slip.OpenSlippage),
				formatFloat(slip.CloseSlippage),
				p.Note,
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write csv row for pair %s: %w", p.ID, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// WritePairsToCSV writes the pairs to filename, replacing any existing file.
func WritePairsToCSV(pairs []*domain.HedgedPair, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WritePairsCSV(file, pairs); err != nil {
		return err
	}
	return file.Sync()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.TimeLayout)
}
