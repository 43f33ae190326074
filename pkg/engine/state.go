package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/gosec-posture/pkg/checks"
	"github.com/user/gosec-posture/pkg/collector"
	"github.com/user/gosec-posture/pkg/scoring"
)

// Phase is the lifecycle state of a scan.
type Phase string

const (
	PhaseIdle      Phase = "Idle"
	PhaseRunning   Phase = "Running"
	PhaseCancelled Phase = "Cancelled"
	PhaseCompleted Phase = "Completed"
)

// Terminal reports whether the phase is Cancelled or Completed.
func (p Phase) Terminal() bool { return p == PhaseCancelled || p == PhaseCompleted }

// Mode selects which assessment a scan performs.
type Mode string

const (
	// ModeRisk is the lightweight risk pass.
	ModeRisk Mode = "risk"
	// ModeThreat is the stricter risk pass that also lists offending
	// processes and connections.
	ModeThreat Mode = "threat"
	// ModeCompliance runs the platform checklist.
	ModeCompliance Mode = "compliance"
	// ModeFull runs the risk pass followed by the checklist.
	ModeFull Mode = "full"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRisk, ModeThreat, ModeCompliance, ModeFull:
		return m, nil
	case "":
		return ModeRisk, nil
	default:
		return "", fmt.Errorf("unknown scan mode %q (want risk, threat, compliance or full)", s)
	}
}

func (m Mode) collectsSignals() bool { return m != ModeCompliance }

func (m Mode) runsChecks() bool { return m == ModeCompliance || m == ModeFull }

// ScanState is owned by the Scanner for the lifetime of one scan. Callers
// only ever see copies.
type ScanState struct {
	ID            string              `json:"id"`
	Mode          Mode                `json:"mode"`
	Phase         Phase               `json:"phase"`
	ProgressPct   int                 `json:"progress_pct"`
	PhaseLabel    string              `json:"phase_label"`
	Signals       *collector.Snapshot `json:"signals,omitempty"`
	Checks        []checks.Result     `json:"checks"`
	Findings      []Finding           `json:"findings"`
	RiskScore     *int                `json:"risk_score,omitempty"`
	CompliancePct *int                `json:"compliance_pct,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at,omitempty"`
}

func (s *ScanState) clone() ScanState {
	c := *s
	c.Checks = append([]checks.Result(nil), s.Checks...)
	c.Findings = append([]Finding(nil), s.Findings...)
	if s.Signals != nil {
		snap := *s.Signals
		c.Signals = &snap
	}
	if s.RiskScore != nil {
		v := *s.RiskScore
		c.RiskScore = &v
	}
	if s.CompliancePct != nil {
		v := *s.CompliancePct
		c.CompliancePct = &v
	}
	return c
}

// Result is handed to the presentation layer when a scan ends. Score
// fields are nil when the mode does not produce them or the scan was
// cancelled.
type Result struct {
	ID            string                        `json:"id"`
	Mode          Mode                          `json:"mode"`
	Platform      checks.Platform               `json:"platform"`
	Phase         Phase                         `json:"phase"`
	RiskScore     *int                          `json:"risk_score,omitempty"`
	Risk          *scoring.RiskAssessment       `json:"risk,omitempty"`
	CompliancePct *int                          `json:"compliance_pct,omitempty"`
	Compliance    *scoring.ComplianceAssessment `json:"compliance,omitempty"`
	Checks        []checks.Result               `json:"checks"`
	Signals       *collector.Snapshot           `json:"signals,omitempty"`
	Findings      []Finding                     `json:"findings"`
	StartedAt     time.Time                     `json:"started_at"`
	FinishedAt    time.Time                     `json:"finished_at"`
}
