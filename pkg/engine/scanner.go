package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/gosec-posture/pkg/checks"
	"github.com/user/gosec-posture/pkg/collector"
	"github.com/user/gosec-posture/pkg/metrics"
	"github.com/user/gosec-posture/pkg/scoring"
)

var (
	// ErrScanRunning is returned when an operation needs an idle scanner.
	ErrScanRunning = errors.New("a scan is already running")
	// ErrScanCancelled is returned by Run when the scan was stopped.
	ErrScanCancelled = errors.New("scan cancelled")
	// ErrNoScan is returned by Wait before any scan was started.
	ErrNoScan = errors.New("no scan has been started")
)

// Config wires a Scanner to its collaborators.
type Config struct {
	// Risk collects signals for risk and full scans.
	Risk *collector.Collector
	// Threat collects signals for threat scans. Defaults to Risk.
	Threat   *collector.Collector
	Registry *checks.Registry
	Platform checks.Platform
	Observer Observer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Scanner drives one scan at a time through its phases. All methods are
// safe for concurrent use.
type Scanner struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	state  ScanState
	cancel context.CancelFunc
	done   chan struct{}
	last   Result
}

func NewScanner(cfg Config) *Scanner {
	if cfg.Threat == nil {
		cfg.Threat = cfg.Risk
	}
	if cfg.Platform == "" {
		cfg.Platform = checks.Current()
	}
	if cfg.Observer == nil {
		cfg.Observer = ObserverFuncs{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		cfg:    cfg,
		logger: logger.Named("scanner"),
		state:  ScanState{Phase: PhaseIdle},
	}
}

// State returns a copy of the current scan state.
func (s *Scanner) State() ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Start begins a scan in mode. When a scan is already running it is
// cancelled instead and no new scan starts; started reports which of the
// two happened.
func (s *Scanner) Start(ctx context.Context, mode Mode) (started bool, err error) {
	s.mu.Lock()
	if s.state.Phase == PhaseRunning {
		cancel := s.cancel
		id := s.state.ID
		s.mu.Unlock()
		s.logger.Info("stopping running scan", zap.String("scan_id", id))
		cancel()
		return false, nil
	}
	defer s.mu.Unlock()

	phases, err := s.plan(mode)
	if err != nil {
		return false, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.state = ScanState{
		ID:          uuid.NewString(),
		Mode:        mode,
		Phase:       PhaseRunning,
		ProgressPct: 0,
		Checks:      []checks.Result{},
		StartedAt:   time.Now(),
	}
	if len(phases) > 0 {
		s.state.PhaseLabel = phases[0].label
	}
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("scan started",
		zap.String("scan_id", s.state.ID),
		zap.String("mode", string(mode)),
		zap.Int("phases", len(phases)+1))
	go s.run(runCtx, cancel, mode, phases, s.state.ID, s.done)
	return true, nil
}

// Toggle is the single-control form of Start/Stop: it starts a scan when
// none is running and stops the running one otherwise.
func (s *Scanner) Toggle(ctx context.Context, mode Mode) (started bool, err error) {
	return s.Start(ctx, mode)
}

// Stop cancels the running scan, if any. It does not wait for the scan
// goroutine to observe the cancellation; use Wait for that.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase == PhaseRunning {
		s.cancel()
	}
}

// Wait blocks until the most recently started scan has ended and returns
// its result.
func (s *Scanner) Wait(ctx context.Context) (Result, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return Result{}, ErrNoScan
	}
	select {
	case <-done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

// Run performs a whole scan synchronously. Cancelling ctx stops the scan
// and Run returns the partial result with ErrScanCancelled.
func (s *Scanner) Run(ctx context.Context, mode Mode) (Result, error) {
	s.mu.Lock()
	running := s.state.Phase == PhaseRunning
	s.mu.Unlock()
	if running {
		return Result{}, ErrScanRunning
	}
	started, err := s.Start(ctx, mode)
	if err != nil {
		return Result{}, err
	}
	if !started {
		return Result{}, ErrScanRunning
	}
	// The scan context derives from ctx, so the scan ends promptly on
	// cancellation and Wait needs no deadline of its own.
	res, err := s.Wait(context.Background())
	if err != nil {
		return res, err
	}
	if res.Phase == PhaseCancelled {
		return res, ErrScanCancelled
	}
	return res, nil
}

// Reset returns a finished scanner to Idle.
func (s *Scanner) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase == PhaseRunning {
		return ErrScanRunning
	}
	s.state = ScanState{Phase: PhaseIdle}
	return nil
}

func (s *Scanner) run(ctx context.Context, cancel context.CancelFunc, mode Mode, phases []phase, id string, done chan struct{}) {
	defer close(done)
	defer cancel()

	log := s.logger.With(zap.String("scan_id", id), zap.String("mode", string(mode)))
	obs := s.cfg.Observer
	total := len(phases) + 1
	builder := collector.NewBuilder()

	if len(phases) > 0 {
		obs.OnProgress(0, phases[0].label)
	}
	for i, ph := range phases {
		if ctx.Err() != nil {
			s.cancelled(log, mode)
			return
		}
		log.Debug("phase started", zap.String("phase", ph.label))
		out := &phaseOutput{label: ph.label}
		ph.run(ctx, out)
		if ctx.Err() != nil {
			log.Debug("phase output discarded", zap.String("phase", ph.label))
			s.cancelled(log, mode)
			return
		}

		pct := (i + 1) * 100 / total
		next := "Finalizing"
		if i+1 < len(phases) {
			next = phases[i+1].label
		}
		s.commit(builder, out, pct, next, mode.collectsSignals())
		for _, sig := range out.failed {
			s.cfg.Metrics.CollectionError(sig.String())
		}
		for _, res := range out.checks {
			s.cfg.Metrics.CheckVerdict(res.Name, string(res.Verdict))
		}
		for _, f := range out.findings {
			obs.OnFinding(f)
		}
		obs.OnProgress(pct, next)
	}

	s.finalize(ctx, log, mode, builder)
}

func (s *Scanner) commit(b *collector.Builder, out *phaseOutput, pct int, next string, signals bool) {
	for _, fn := range out.apply {
		fn(b)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Checks = append(s.state.Checks, out.checks...)
	s.state.Findings = append(s.state.Findings, out.findings...)
	if signals {
		snap := b.Build(time.Now())
		s.state.Signals = &snap
	}
	s.state.ProgressPct = pct
	s.state.PhaseLabel = next
}

func (s *Scanner) cancelled(log *zap.Logger, mode Mode) {
	s.mu.Lock()
	s.state.Phase = PhaseCancelled
	s.state.FinishedAt = time.Now()
	s.last = s.result(nil, nil)
	elapsed := s.state.FinishedAt.Sub(s.state.StartedAt)
	s.mu.Unlock()

	s.cfg.Metrics.ScanFinished(string(mode), "cancelled", elapsed)
	log.Info("scan cancelled", zap.Duration("elapsed", elapsed))
}

// finalize scores the committed output exactly once and freezes the state.
func (s *Scanner) finalize(ctx context.Context, log *zap.Logger, mode Mode, b *collector.Builder) {
	out := &phaseOutput{label: "Finalizing"}

	var (
		risk *scoring.RiskAssessment
		snap collector.Snapshot
	)
	if mode.collectsSignals() {
		snap = b.Build(time.Now())
		ra := scoring.Risk(snap)
		risk = &ra
		for _, c := range ra.Contributions {
			out.add(SeverityWarning, "[!] %s", c.Reason)
		}
		if snap.Unknown != 0 {
			out.add(SeverityInfo, "Signals not collected: %s", snap.Unknown)
		}
		out.add(riskSeverity(ra.Band), "Risk Level: %s (%d/100)", ra.Band, ra.Score)
	}

	var compliance *scoring.ComplianceAssessment
	if mode.runsChecks() {
		s.mu.Lock()
		results := append([]checks.Result(nil), s.state.Checks...)
		s.mu.Unlock()
		if ca, ok := scoring.Compliance(results); ok {
			compliance = &ca
			out.add(complianceSeverity(ca.Band), "Compliance check complete - %s (%d%%)", ca.Message, ca.Percent)
		} else {
			out.add(SeverityInfo, "Compliance score unavailable: no applicable checks were evaluated")
		}
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		s.cancelled(log, mode)
		return
	}
	if risk != nil {
		s.state.Signals = &snap
		score := risk.Score
		s.state.RiskScore = &score
	}
	if compliance != nil {
		pct := compliance.Percent
		s.state.CompliancePct = &pct
	}
	s.state.Findings = append(s.state.Findings, out.findings...)
	s.state.ProgressPct = 100
	s.state.PhaseLabel = "Scan complete"
	s.state.Phase = PhaseCompleted
	s.state.FinishedAt = time.Now()
	res := s.result(risk, compliance)
	s.last = res
	elapsed := s.state.FinishedAt.Sub(s.state.StartedAt)
	s.mu.Unlock()

	if risk != nil {
		s.cfg.Metrics.RiskScore(risk.Score)
	}
	if compliance != nil {
		s.cfg.Metrics.CompliancePct(compliance.Percent)
	}
	s.cfg.Metrics.ScanFinished(string(mode), "completed", elapsed)
	log.Info("scan completed",
		zap.Duration("elapsed", elapsed),
		zap.Intp("risk_score", res.RiskScore),
		zap.Intp("compliance_pct", res.CompliancePct))

	obs := s.cfg.Observer
	for _, f := range out.findings {
		obs.OnFinding(f)
	}
	obs.OnProgress(100, "Scan complete")
	obs.OnComplete(res)
}

// result builds the outward view of the current state. Callers hold s.mu.
func (s *Scanner) result(risk *scoring.RiskAssessment, compliance *scoring.ComplianceAssessment) Result {
	st := s.state.clone()
	return Result{
		ID:            st.ID,
		Mode:          st.Mode,
		Platform:      s.cfg.Platform,
		Phase:         st.Phase,
		RiskScore:     st.RiskScore,
		Risk:          risk,
		CompliancePct: st.CompliancePct,
		Compliance:    compliance,
		Checks:        st.Checks,
		Signals:       st.Signals,
		Findings:      st.Findings,
		StartedAt:     st.StartedAt,
		FinishedAt:    st.FinishedAt,
	}
}

func riskSeverity(b scoring.Band) Severity {
	switch b {
	case scoring.BandHigh:
		return SeverityError
	case scoring.BandModerate:
		return SeverityWarning
	default:
		return SeveritySuccess
	}
}

func complianceSeverity(b scoring.Band) Severity {
	switch b {
	case scoring.BandLow:
		return SeverityError
	case scoring.BandModerate:
		return SeverityWarning
	default:
		return SeveritySuccess
	}
}

// Summary is a one-line description of a result for logs and tool output.
func (r Result) Summary() string {
	switch {
	case r.Phase == PhaseCancelled:
		return "scan cancelled"
	case r.RiskScore != nil && r.CompliancePct != nil:
		return fmt.Sprintf("risk %d/100 (%s), compliance %d%%", *r.RiskScore, r.Risk.Band, *r.CompliancePct)
	case r.RiskScore != nil:
		return fmt.Sprintf("risk %d/100 (%s)", *r.RiskScore, r.Risk.Band)
	case r.CompliancePct != nil:
		return fmt.Sprintf("compliance %d%%", *r.CompliancePct)
	default:
		return "no score available"
	}
}
