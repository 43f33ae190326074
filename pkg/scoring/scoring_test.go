package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gosec-posture/pkg/checks"
	"github.com/user/gosec-posture/pkg/collector"
)

const day = 24 * 60 * 60

func snapshot(uptime uint64, mem float32, procs, conns uint32, cpu float32) collector.Snapshot {
	return collector.NewBuilder().
		SetUptime(uptime).
		SetMemoryUsedPct(mem).
		SetHighMemoryProcessCount(procs).
		SetExternalConnectionCount(conns).
		SetCPUUsedPct(cpu).
		Build(time.Unix(0, 0))
}

func TestRiskWorstCaseScenario(t *testing.T) {
	a := Risk(snapshot(8*day, 95, 6, 6, 95))
	assert.Equal(t, 7, a.Points)
	assert.Equal(t, 88, a.Score)
	assert.Equal(t, BandHigh, a.Band)
	assert.Len(t, a.Contributions, 5)
}

func TestRiskIsDeterministic(t *testing.T) {
	s := snapshot(3*day, 85, 2, 4, 50)
	first := Risk(s)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Risk(s))
	}
	assert.Equal(t, 2, first.Points)
	assert.Equal(t, 25, first.Score)
	assert.Equal(t, BandLow, first.Band)
}

func TestRiskThresholdsAreStrict(t *testing.T) {
	a := Risk(snapshot(7*day, 80, 5, 3, 90))
	assert.Zero(t, a.Points)
	assert.Zero(t, a.Score)
	assert.Empty(t, a.Contributions)

	a = Risk(snapshot(0, 80.5, 0, 4, 0))
	assert.Equal(t, 2, a.Points)
}

func TestRiskIgnoresUnknownSignals(t *testing.T) {
	s := collector.NewBuilder().SetMemoryUsedPct(99).Build(time.Unix(0, 0))
	a := Risk(s)
	assert.Equal(t, 2, a.Points)
	assert.Equal(t, 25, a.Score)
}

func TestRiskScoreAndBand(t *testing.T) {
	cases := []struct {
		points int
		score  int
		band   Band
	}{
		{0, 0, BandLow},
		{1, 13, BandLow},
		{2, 25, BandLow},
		{3, 38, BandModerate},
		{5, 63, BandModerate},
		{6, 75, BandHigh},
		{8, 100, BandHigh},
	}
	for _, c := range cases {
		assert.Equal(t, c.score, RiskScore(c.points), "points=%d", c.points)
		assert.Equal(t, c.band, RiskBand(RiskScore(c.points)), "points=%d", c.points)
	}
	assert.Equal(t, BandModerate, RiskBand(30))
	assert.Equal(t, BandModerate, RiskBand(69))
	assert.Equal(t, BandHigh, RiskBand(70))
}

func results(vs ...checks.Verdict) []checks.Result {
	out := make([]checks.Result, len(vs))
	for i, v := range vs {
		out[i] = checks.Result{Name: string(v), Verdict: v}
	}
	return out
}

func TestComplianceLinuxScenario(t *testing.T) {
	a, ok := Compliance(results(checks.Pass, checks.Fail, checks.Pass, checks.Error))
	require.True(t, ok)
	assert.Equal(t, 50, a.Percent)
	assert.Equal(t, 2, a.Passed)
	assert.Equal(t, 4, a.Total)
	assert.Equal(t, BandLow, a.Band)
}

func TestComplianceAllErrorsIsZero(t *testing.T) {
	a, ok := Compliance(results(checks.Error, checks.Error, checks.Error))
	require.True(t, ok)
	assert.Zero(t, a.Percent)
	assert.Equal(t, 3, a.Errored)
}

func TestComplianceEmptyIsUndefined(t *testing.T) {
	_, ok := Compliance(nil)
	assert.False(t, ok)

	_, ok = Compliance([]checks.Result{checks.UnsupportedResult("plan9")})
	assert.False(t, ok)
}

func TestComplianceTruncates(t *testing.T) {
	a, ok := Compliance(results(checks.Pass, checks.Pass, checks.Warn))
	require.True(t, ok)
	assert.Equal(t, 66, a.Percent)
	assert.Equal(t, BandModerate, a.Band)
}

func TestComplianceBands(t *testing.T) {
	assert.Equal(t, BandHigh, ComplianceBand(80))
	assert.Equal(t, BandModerate, ComplianceBand(79))
	assert.Equal(t, BandModerate, ComplianceBand(60))
	assert.Equal(t, BandLow, ComplianceBand(59))
	assert.Contains(t, ComplianceMessage(BandLow), "immediate action")
}
