package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/user/gosec-posture/pkg/checks"
	"github.com/user/gosec-posture/pkg/collector"
)

// DefaultBaselinePath is used when no baseline file is given.
const DefaultBaselinePath = ".gosec-baseline.json"

const baselineVersion = 1

// Baseline is a completed scan saved for later comparison.
type Baseline struct {
	Version       int                 `json:"version"`
	ScanID        string              `json:"scan_id"`
	Mode          Mode                `json:"mode"`
	Platform      checks.Platform     `json:"platform"`
	SavedAt       time.Time           `json:"saved_at"`
	RiskScore     *int                `json:"risk_score,omitempty"`
	CompliancePct *int                `json:"compliance_pct,omitempty"`
	Signals       *collector.Snapshot `json:"signals,omitempty"`
	Checks        []checks.Result     `json:"checks"`
}

// NewBaseline captures a result.
func NewBaseline(r Result) Baseline {
	return Baseline{
		Version:       baselineVersion,
		ScanID:        r.ID,
		Mode:          r.Mode,
		Platform:      r.Platform,
		SavedAt:       time.Now().UTC(),
		RiskScore:     r.RiskScore,
		CompliancePct: r.CompliancePct,
		Signals:       r.Signals,
		Checks:        r.Checks,
	}
}

// SaveBaseline writes a completed result to path. The file is replaced
// atomically.
func SaveBaseline(path string, r Result) error {
	if r.Phase != PhaseCompleted {
		return fmt.Errorf("only completed scans can be saved as a baseline (scan is %s)", r.Phase)
	}
	data, err := json.MarshalIndent(NewBaseline(r), "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".baseline-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func LoadBaseline(path string) (Baseline, error) {
	var b Baseline
	data, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	if b.Version != baselineVersion {
		return b, fmt.Errorf("baseline %s has unsupported version %d", path, b.Version)
	}
	return b, nil
}

// CheckChange is one check compared across two scans. Before is empty for
// checks that are new since the baseline.
type CheckChange struct {
	Name   string         `json:"name"`
	Before checks.Verdict `json:"before,omitempty"`
	After  checks.Verdict `json:"after"`
	Detail string         `json:"detail"`
}

// BaselineDiff is the comparison of a result against a baseline.
type BaselineDiff struct {
	Regressed       []CheckChange `json:"regressed"`
	Fixed           []CheckChange `json:"fixed"`
	Unchanged       []CheckChange `json:"unchanged"`
	Added           []CheckChange `json:"added"`
	Removed         []string      `json:"removed"`
	RiskDelta       *int          `json:"risk_delta,omitempty"`
	ComplianceDelta *int          `json:"compliance_delta,omitempty"`
}

// verdictRank orders verdicts from best to worst.
func verdictRank(v checks.Verdict) int {
	switch v {
	case checks.Pass:
		return 0
	case checks.Warn:
		return 1
	case checks.Error:
		return 2
	default:
		return 3
	}
}

// CompareBaseline diffs r against base. Checks are matched by name.
func CompareBaseline(base Baseline, r Result) BaselineDiff {
	var d BaselineDiff
	before := make(map[string]checks.Result, len(base.Checks))
	for _, c := range base.Checks {
		if !c.Informational {
			before[c.Name] = c
		}
	}

	seen := make(map[string]bool, len(r.Checks))
	for _, c := range r.Checks {
		if c.Informational {
			continue
		}
		seen[c.Name] = true
		old, ok := before[c.Name]
		change := CheckChange{Name: c.Name, Before: old.Verdict, After: c.Verdict, Detail: c.Detail}
		switch {
		case !ok:
			d.Added = append(d.Added, change)
		case verdictRank(c.Verdict) > verdictRank(old.Verdict):
			d.Regressed = append(d.Regressed, change)
		case verdictRank(c.Verdict) < verdictRank(old.Verdict):
			d.Fixed = append(d.Fixed, change)
		default:
			d.Unchanged = append(d.Unchanged, change)
		}
	}
	for name := range before {
		if !seen[name] {
			d.Removed = append(d.Removed, name)
		}
	}
	sort.Strings(d.Removed)

	if base.RiskScore != nil && r.RiskScore != nil {
		delta := *r.RiskScore - *base.RiskScore
		d.RiskDelta = &delta
	}
	if base.CompliancePct != nil && r.CompliancePct != nil {
		delta := *r.CompliancePct - *base.CompliancePct
		d.ComplianceDelta = &delta
	}
	return d
}

// Worse reports whether anything regressed: a check got worse or the
// risk score rose.
func (d BaselineDiff) Worse() bool {
	return len(d.Regressed) > 0 || (d.RiskDelta != nil && *d.RiskDelta > 0)
}

// Report renders the diff for terminals and agent tools.
func (d BaselineDiff) Report(source string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Baseline Comparison (vs %s):\n", source))
	sb.WriteString("--------------------------------------------------\n")
	if d.RiskDelta != nil {
		sb.WriteString(fmt.Sprintf("Risk score change: %+d\n", *d.RiskDelta))
	}
	if d.ComplianceDelta != nil {
		sb.WriteString(fmt.Sprintf("Compliance change: %+d%%\n", *d.ComplianceDelta))
	}

	section := func(title, mark string, list []CheckChange) {
		sb.WriteString(fmt.Sprintf("\n%s: %d\n", title, len(list)))
		for _, c := range list {
			if c.Before == "" {
				sb.WriteString(fmt.Sprintf("  [%s] %s: %s - %s\n", mark, c.Name, c.After, c.Detail))
				continue
			}
			sb.WriteString(fmt.Sprintf("  [%s] %s: %s -> %s - %s\n", mark, c.Name, c.Before, c.After, c.Detail))
		}
	}
	section("REGRESSED", "+", d.Regressed)
	section("FIXED", "-", d.Fixed)
	section("UNCHANGED", "=", d.Unchanged)
	if len(d.Added) > 0 {
		section("NEW CHECKS", "*", d.Added)
	}
	if len(d.Removed) > 0 {
		sb.WriteString(fmt.Sprintf("\nNO LONGER CHECKED: %s\n", strings.Join(d.Removed, ", ")))
	}
	return sb.String()
}
