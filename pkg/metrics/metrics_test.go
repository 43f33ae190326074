package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordsScanOutcomes(t *testing.T) {
	m := New()
	m.ScanFinished("risk", "completed", 2*time.Second)
	m.ScanFinished("risk", "cancelled", time.Second)
	m.ScanFinished("risk", "completed", time.Second)
	m.RiskScore(88)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scans.WithLabelValues("risk", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("risk", "cancelled")))
	assert.Equal(t, 88.0, testutil.ToFloat64(m.riskScore))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ScanFinished("risk", "completed", time.Second)
		m.CheckVerdict("UFW Firewall", "PASS")
		m.IncidentSubmitted("High")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.CompliancePct(75)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gosec_posture_compliance_percent 75"))
}
