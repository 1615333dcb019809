package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/hedge"
)

// gaugeValue returns the value of the metric with the given labels, or false.
func gaugeValue(t *testing.T, m *Metrics, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			got := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			if metric.GetGauge() != nil {
				return metric.GetGauge().GetValue(), true
			}
			return metric.GetCounter().GetValue(), true
		}
	}
	return 0, false
}

func TestObserveSummary(t *testing.T) {
	m := New()
	summary := hedge.PortfolioSummary{
		PortfolioTotals: hedge.PortfolioTotals{
			PairCount:    2,
			TotalPnL:     -10.95,
			TotalFees:    10.93,
			TotalVolumeA: 5408.955,
			TotalVolumeB: 5408.95,
		},
		Equity:    99989.05,
		ProgressA: 1.08,
		ProgressB: 1.07,
	}

	m.ObserveSummary("trader", summary)

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"hedge_tracker_portfolio_pairs", map[string]string{"workspace": "trader"}, 2},
		{"hedge_tracker_portfolio_pnl_usd", map[string]string{"workspace": "trader"}, -10.95},
		{"hedge_tracker_portfolio_fees_usd", map[string]string{"workspace": "trader"}, 10.93},
		{"hedge_tracker_portfolio_equity_usd", map[string]string{"workspace": "trader"}, 99989.05},
		{"hedge_tracker_portfolio_volume_usd", map[string]string{"workspace": "trader", "leg": "A"}, 5408.955},
		{"hedge_tracker_portfolio_volume_usd", map[string]string{"workspace": "trader", "leg": "B"}, 5408.95},
		{"hedge_tracker_portfolio_volume_progress_percent", map[string]string{"workspace": "trader", "leg": "B"}, 1.07},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := gaugeValue(t, m, tt.name, tt.labels)
			require.True(t, ok)
			assert.InDelta(t, tt.want, v, 1e-9)
		})
	}
}

func TestObservePriceAndRisk(t *testing.T) {
	m := New()

	m.ObservePrice(3800)
	m.ObservePrice(3801.5)
	m.ObserveRisk(domain.HedgeRiskAssessment{A: domain.RiskAssessment{Computable: true}, B: domain.RiskAssessment{Computable: true}, IsSafe: true})
	m.ObserveRisk(domain.HedgeRiskAssessment{A: domain.RiskAssessment{Computable: true}, B: domain.RiskAssessment{Computable: true}})
	m.ObserveRisk(domain.HedgeRiskAssessment{})
	m.ObserveRisk(domain.HedgeRiskAssessment{})

	price, ok := gaugeValue(t, m, "hedge_tracker_price_reference_usd", nil)
	require.True(t, ok)
	assert.Equal(t, 3801.5, price)
	updates, _ := gaugeValue(t, m, "hedge_tracker_price_updates_total", nil)
	assert.Equal(t, 2.0, updates)

	for verdict, want := range map[string]float64{"safe": 1, "unsafe": 1, "uncomputable": 2} {
		v, ok := gaugeValue(t, m, "hedge_tracker_risk_checks_total", map[string]string{"verdict": verdict})
		require.True(t, ok, verdict)
		assert.Equal(t, want, v, verdict)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveSummary("trader", hedge.PortfolioSummary{PortfolioTotals: hedge.PortfolioTotals{PairCount: 1}})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hedge_tracker_portfolio_pairs{workspace="trader"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
