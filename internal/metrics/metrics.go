package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/hedge"
)

const namespace = "hedge_tracker"

// Metrics holds the Prometheus collectors of the tracker on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	PairCount      *prometheus.GaugeVec
	TotalPnL       *prometheus.GaugeVec
	TotalFees      *prometheus.GaugeVec
	Equity         *prometheus.GaugeVec
	Volume         *prometheus.GaugeVec // Labels: workspace, leg
	VolumeProgress *prometheus.GaugeVec // Labels: workspace, leg

	ReferencePrice prometheus.Gauge
	PriceUpdates   prometheus.Counter
	RiskChecks     *prometheus.CounterVec // Labels: verdict
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PairCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "pairs",
			Help:      "Number of recorded hedge pairs",
		}, []string{"workspace"}),
		TotalPnL: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "pnl_usd",
			Help:      "Realized PnL across all pairs in USD",
		}, []string{"workspace"}),
		TotalFees: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "fees_usd",
			Help:      "Fees paid across all pairs in USD",
		}, []string{"workspace"}),
		Equity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "equity_usd",
			Help:      "Starting equity plus realized PnL in USD",
		}, []string{"workspace"}),
		Volume: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "volume_usd",
			Help:      "Entry notional volume per exchange leg in USD",
		}, []string{"workspace", "leg"}),
		VolumeProgress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "volume_progress_percent",
			Help:      "Volume as a percentage of the monthly target per exchange leg",
		}, []string{"workspace", "leg"}),
		ReferencePrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "reference_usd",
			Help:      "Latest reference price",
		}),
		PriceUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "updates_total",
			Help:      "Number of reference price updates received",
		}),
		RiskChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "checks_total",
			Help:      "Number of hedge liquidation checks by verdict",
		}, []string{"verdict"}), // safe, unsafe, uncomputable
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSummary publishes the portfolio figures of a workspace.
func (m *Metrics) ObserveSummary(workspace string, s hedge.PortfolioSummary) {
	m.PairCount.WithLabelValues(workspace).Set(float64(s.PairCount))
	m.TotalPnL.WithLabelValues(workspace).Set(s.TotalPnL)
	m.TotalFees.WithLabelValues(workspace).Set(s.TotalFees)
	m.Equity.WithLabelValues(workspace).Set(s.Equity)
	m.Volume.WithLabelValues(workspace, string(domain.LegA)).Set(s.TotalVolumeA)
	m.Volume.WithLabelValues(workspace, string(domain.LegB)).Set(s.TotalVolumeB)
	m.VolumeProgress.WithLabelValues(workspace, string(domain.LegA)).Set(s.ProgressA)
	m.VolumeProgress.WithLabelValues(workspace, string(domain.LegB)).Set(s.ProgressB)
}

// ObservePrice records a reference price update.
func (m *Metrics) ObservePrice(price float64) {
	m.ReferencePrice.Set(price)
	m.PriceUpdates.Inc()
}

// ObserveRisk counts a hedge liquidation check by its verdict.
func (m *Metrics) ObserveRisk(r domain.HedgeRiskAssessment) {
	switch {
	case !r.A.Computable || !r.B.Computable:
		m.RiskChecks.WithLabelValues("uncomputable").Inc()
	case r.IsSafe:
		m.RiskChecks.WithLabelValues("safe").Inc()
	default:
		m.RiskChecks.WithLabelValues("unsafe").Inc()
	}
}
