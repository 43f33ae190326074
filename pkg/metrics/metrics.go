package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gosec_posture"

// Metrics records engine activity. A nil *Metrics is valid and records
// nothing, so callers never need to guard their calls.
type Metrics struct {
	gatherer prometheus.Gatherer

	scans            *prometheus.CounterVec
	scanDuration     *prometheus.HistogramVec
	riskScore        prometheus.Gauge
	compliancePct    prometheus.Gauge
	checkVerdicts    *prometheus.CounterVec
	collectionErrors *prometheus.CounterVec
	incidents        *prometheus.CounterVec
}

// New registers the engine metrics on a fresh registry.
func New() *Metrics {
	return NewWith(prometheus.NewRegistry())
}

// NewWith registers the engine metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans finished, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of finished scans.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"mode"}),
		riskScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Risk score of the last completed risk assessment (0-100).",
		}),
		compliancePct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compliance_percent",
			Help:      "Compliance percentage of the last completed compliance check.",
		}),
		checkVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_verdicts_total",
			Help:      "Check results, by check and verdict.",
		}, []string{"check", "verdict"}),
		collectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_errors_total",
			Help:      "Signals that could not be read, by signal.",
		}, []string{"signal"}),
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_submitted_total",
			Help:      "Incidents stored, by severity.",
		}, []string{"severity"}),
	}
	reg.MustRegister(m.scans, m.scanDuration, m.riskScore, m.compliancePct,
		m.checkVerdicts, m.collectionErrors, m.incidents)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func (m *Metrics) ScanFinished(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(mode, outcome).Inc()
	m.scanDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) RiskScore(score int) {
	if m == nil {
		return
	}
	m.riskScore.Set(float64(score))
}

func (m *Metrics) CompliancePct(pct int) {
	if m == nil {
		return
	}
	m.compliancePct.Set(float64(pct))
}

func (m *Metrics) CheckVerdict(check, verdict string) {
	if m == nil {
		return
	}
	m.checkVerdicts.WithLabelValues(check, verdict).Inc()
}

func (m *Metrics) CollectionError(signal string) {
	if m == nil {
		return
	}
	m.collectionErrors.WithLabelValues(signal).Inc()
}

func (m *Metrics) IncidentSubmitted(severity string) {
	if m == nil {
		return
	}
	m.incidents.WithLabelValues(severity).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
