package scoring

import "github.com/user/gosec-posture/pkg/checks"

const (
	complianceHighCutoff     = 80
	complianceModerateCutoff = 60
)

// ComplianceAssessment summarises a set of check results.
type ComplianceAssessment struct {
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Warned  int    `json:"warned"`
	Errored int    `json:"errored"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Band    Band   `json:"band"`
	Message string `json:"message"`
}

// Compliance scores check results as passed/total, truncated to an
// integer percentage. WARN and ERROR count toward the total only.
// Informational results are ignored. ok is false when there is nothing to
// score, in which case the percentage is undefined.
func Compliance(results []checks.Result) (a ComplianceAssessment, ok bool) {
	for _, r := range results {
		if r.Informational {
			continue
		}
		a.Total++
		switch r.Verdict {
		case checks.Pass:
			a.Passed++
		case checks.Fail:
			a.Failed++
		case checks.Warn:
			a.Warned++
		default:
			a.Errored++
		}
	}
	if a.Total == 0 {
		return a, false
	}
	a.Percent = a.Passed * 100 / a.Total
	a.Band = ComplianceBand(a.Percent)
	a.Message = ComplianceMessage(a.Band)
	return a, true
}

// ComplianceBand classifies a compliance percentage; higher is better.
func ComplianceBand(pct int) Band {
	switch {
	case pct >= complianceHighCutoff:
		return BandHigh
	case pct >= complianceModerateCutoff:
		return BandModerate
	default:
		return BandLow
	}
}

func ComplianceMessage(b Band) string {
	switch b {
	case BandHigh:
		return "High compliance level achieved"
	case BandModerate:
		return "Moderate compliance level - improvements needed"
	default:
		return "Low compliance level - immediate action required"
	}
}
