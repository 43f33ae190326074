package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gosec-posture/pkg/checks"
	"github.com/user/gosec-posture/pkg/collector"
	"github.com/user/gosec-posture/pkg/scoring"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func assertMonotonic(t *testing.T, progress []int) {
	t.Helper()
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1], "progress went backwards: %v", progress)
	}
}

func TestRiskScanScoresHighRiskHost(t *testing.T) {
	rec := &recorder{}
	s := newTestScanner(t, riskyHost(), checks.Linux, rec)

	res, err := s.Run(waitCtx(t), ModeRisk)
	require.NoError(t, err)

	assert.Equal(t, PhaseCompleted, res.Phase)
	require.NotNil(t, res.RiskScore)
	assert.Equal(t, 88, *res.RiskScore)
	assert.Equal(t, scoring.BandHigh, res.Risk.Band)
	assert.Equal(t, 7, res.Risk.Points)
	assert.Nil(t, res.CompliancePct)
	assert.Empty(t, res.Checks)

	require.NotNil(t, res.Signals)
	assert.EqualValues(t, 6, res.Signals.HighMemoryProcessCount)
	assert.EqualValues(t, 6, res.Signals.ExternalConnectionCount)
	assert.Zero(t, res.Signals.Unknown)

	assert.Equal(t, []int{0, 25, 50, 75, 100}, rec.progress)
	require.Len(t, rec.completed, 1)
	assert.Equal(t, res.ID, rec.completed[0].ID)
	assert.Contains(t, rec.messages(), "Risk Level: High (88/100)")
}

func TestRiskScanIsDeterministic(t *testing.T) {
	s := newTestScanner(t, riskyHost(), checks.Linux, nil)
	first, err := s.Run(waitCtx(t), ModeRisk)
	require.NoError(t, err)
	second, err := s.Run(waitCtx(t), ModeRisk)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, *first.RiskScore, *second.RiskScore)
	assert.Equal(t, first.Risk.Contributions, second.Risk.Contributions)
}

func TestComplianceScanLinux(t *testing.T) {
	rec := &recorder{}
	s := newTestScanner(t, riskyHost(), checks.Linux, rec)

	res, err := s.Run(waitCtx(t), ModeCompliance)
	require.NoError(t, err)

	assert.Nil(t, res.RiskScore)
	assert.Nil(t, res.Signals)
	require.NotNil(t, res.CompliancePct)
	assert.Equal(t, 50, *res.CompliancePct)
	require.Len(t, res.Checks, 4)
	assert.Equal(t, checks.Pass, res.Checks[0].Verdict)
	assert.Equal(t, checks.Fail, res.Checks[1].Verdict)
	assert.Equal(t, checks.Pass, res.Checks[2].Verdict)
	assert.Equal(t, checks.Error, res.Checks[3].Verdict)

	// One phase per check plus finalize.
	assert.Equal(t, []int{0, 20, 40, 60, 80, 100}, rec.progress)
	assert.Equal(t, "Checking UFW Firewall", rec.labels[0])
}

func TestFullScanPopulatesBothScores(t *testing.T) {
	rec := &recorder{}
	s := newTestScanner(t, riskyHost(), checks.Linux, rec)

	res, err := s.Run(waitCtx(t), ModeFull)
	require.NoError(t, err)

	require.NotNil(t, res.RiskScore)
	require.NotNil(t, res.CompliancePct)
	assert.Equal(t, 88, *res.RiskScore)
	assert.Equal(t, 50, *res.CompliancePct)
	assert.Equal(t, []int{0, 12, 25, 37, 50, 62, 75, 87, 100}, rec.progress)
	assertMonotonic(t, rec.progress)
}

func TestUnsupportedPlatformLeavesComplianceUndefined(t *testing.T) {
	rec := &recorder{}
	s := newTestScanner(t, riskyHost(), checks.ParsePlatform("Plan9"), rec)

	res, err := s.Run(waitCtx(t), ModeCompliance)
	require.NoError(t, err)

	assert.Equal(t, PhaseCompleted, res.Phase)
	require.Len(t, res.Checks, 1)
	assert.Equal(t, checks.Error, res.Checks[0].Verdict)
	assert.True(t, res.Checks[0].Informational)
	assert.Contains(t, res.Checks[0].Detail, "plan9")
	assert.Nil(t, res.CompliancePct)
	assert.Nil(t, res.Compliance)
	assert.Len(t, rec.completed, 1)
}

func TestThreatScanListsOffendingProcesses(t *testing.T) {
	h := &fakeHost{
		uptime: 3600, mem: 40, cpu: 10,
		procs: []collector.ProcessInfo{
			{PID: 1, Name: "chrome", RSSBytes: 600 * mb},
			{PID: 2, Name: "editor", RSSBytes: 200 * mb},
		},
	}
	rec := &recorder{}
	s := newTestScanner(t, h, checks.Linux, rec)

	res, err := s.Run(waitCtx(t), ModeThreat)
	require.NoError(t, err)

	assert.EqualValues(t, 1, res.Signals.HighMemoryProcessCount)
	assert.Contains(t, rec.messages(), "Processes using >500MB: 1")
	assert.Contains(t, rec.messages(), "High memory process: chrome (pid 1) using 600 MB")
	assert.NotContains(t, rec.messages(), "High memory process: editor (pid 2) using 200 MB")
	assert.Equal(t, 0, *res.RiskScore)
}

func TestThreatScanFlagsHighCPU(t *testing.T) {
	rec := &recorder{}
	s := newTestScanner(t, riskyHost(), checks.Linux, rec)
	_, err := s.Run(waitCtx(t), ModeThreat)
	require.NoError(t, err)
	assert.Contains(t, rec.messages(), "High CPU usage: 95.0%")

	rec = &recorder{}
	s = newTestScanner(t, riskyHost(), checks.Linux, rec)
	_, err = s.Run(waitCtx(t), ModeRisk)
	require.NoError(t, err)
	assert.NotContains(t, rec.messages(), "High CPU usage: 95.0%")
}

func TestCollectionErrorDegradesSignal(t *testing.T) {
	h := riskyHost()
	h.procErr = errors.New("access denied")
	rec := &recorder{}
	s := newTestScanner(t, h, checks.Linux, rec)

	res, err := s.Run(waitCtx(t), ModeRisk)
	require.NoError(t, err)

	assert.True(t, res.Signals.Unknown.Has(collector.SignalProcesses))
	// 6 of the 7 points remain: round(6/8*100).
	assert.Equal(t, 75, *res.RiskScore)

	var warned bool
	for _, f := range rec.findings {
		if f.Severity == SeverityWarning && f.Phase == "Scanning processes" {
			warned = true
			assert.Contains(t, f.Message, "Could not read processes")
		}
	}
	assert.True(t, warned)
}

func TestStopDiscardsRunningPhase(t *testing.T) {
	h := blockingHost()
	rec := &recorder{}
	s := newTestScanner(t, h, checks.Linux, rec)

	started, err := s.Start(context.Background(), ModeRisk)
	require.NoError(t, err)
	require.True(t, started)

	<-h.connEntered
	s.Stop()
	res, err := s.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Equal(t, PhaseCancelled, res.Phase)
	assert.Nil(t, res.RiskScore)
	assert.Nil(t, res.CompliancePct)
	assert.Empty(t, rec.completed)

	st := s.State()
	assert.Equal(t, PhaseCancelled, st.Phase)
	assert.Equal(t, 25, st.ProgressPct)
	require.NotNil(t, st.Signals)
	assert.True(t, st.Signals.Known(collector.SignalProcesses))
	assert.False(t, st.Signals.Known(collector.SignalConnections))
	assert.Contains(t, rec.messages(), "Processes using >100MB: 6")
	for _, m := range rec.messages() {
		assert.NotContains(t, m, "External connections")
	}
	assert.NotContains(t, rec.progress, 100)
}

func TestStartWhileRunningCancelsWithoutRestart(t *testing.T) {
	h := blockingHost()
	s := newTestScanner(t, h, checks.Linux, nil)

	started, err := s.Toggle(context.Background(), ModeRisk)
	require.NoError(t, err)
	require.True(t, started)
	id := s.State().ID
	<-h.connEntered

	started, err = s.Start(context.Background(), ModeFull)
	require.NoError(t, err)
	assert.False(t, started)

	res, err := s.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, PhaseCancelled, res.Phase)
	assert.Equal(t, id, res.ID)
	assert.Equal(t, ModeRisk, s.State().Mode)
}

func TestRunRejectsConcurrentScan(t *testing.T) {
	h := blockingHost()
	s := newTestScanner(t, h, checks.Linux, nil)

	_, err := s.Start(context.Background(), ModeRisk)
	require.NoError(t, err)
	<-h.connEntered

	_, err = s.Run(context.Background(), ModeRisk)
	assert.ErrorIs(t, err, ErrScanRunning)
	assert.Equal(t, PhaseRunning, s.State().Phase)
	assert.ErrorIs(t, s.Reset(), ErrScanRunning)

	s.Stop()
	_, err = s.Wait(waitCtx(t))
	require.NoError(t, err)
	require.NoError(t, s.Reset())

	st := s.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Zero(t, st.ProgressPct)
	assert.Nil(t, st.Signals)
	assert.Empty(t, st.Checks)
}

func TestRunReturnsCancelledWhenContextEnds(t *testing.T) {
	h := blockingHost()
	s := newTestScanner(t, h, checks.Linux, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-h.connEntered
		cancel()
	}()
	res, err := s.Run(ctx, ModeRisk)
	assert.ErrorIs(t, err, ErrScanCancelled)
	assert.Equal(t, PhaseCancelled, res.Phase)
	assert.Nil(t, res.RiskScore)
}

func TestStartResetsPreviousState(t *testing.T) {
	s := newTestScanner(t, riskyHost(), checks.Linux, nil)
	_, err := s.Run(waitCtx(t), ModeFull)
	require.NoError(t, err)

	res, err := s.Run(waitCtx(t), ModeRisk)
	require.NoError(t, err)
	assert.Nil(t, res.CompliancePct)
	assert.Empty(t, res.Checks)
}

func TestStateReturnsCopy(t *testing.T) {
	s := newTestScanner(t, riskyHost(), checks.Linux, nil)
	_, err := s.Run(waitCtx(t), ModeFull)
	require.NoError(t, err)

	st := s.State()
	st.Checks[0].Verdict = checks.Fail
	*st.RiskScore = 1

	again := s.State()
	assert.Equal(t, checks.Pass, again.Checks[0].Verdict)
	assert.Equal(t, 88, *again.RiskScore)
}

func TestWaitBeforeStart(t *testing.T) {
	s := newTestScanner(t, riskyHost(), checks.Linux, nil)
	_, err := s.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNoScan)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Threat")
	require.NoError(t, err)
	assert.Equal(t, ModeThreat, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeRisk, m)

	_, err = ParseMode("deep")
	assert.Error(t, err)
}
