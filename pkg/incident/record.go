// Package incident keeps the ledger of manually logged security
// incidents.
package incident

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Severity of an incident. The ladder is Critical > High > Medium > Low.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

var severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank is the position on the ladder, 1 for Low up to 4 for Critical and
// 0 for anything else.
func (s Severity) Rank() int {
	for i, v := range severities {
		if v == s {
			return i + 1
		}
	}
	return 0
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

// ParseSeverity accepts any letter case.
func ParseSeverity(s string) (Severity, error) {
	for _, v := range severities {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q (want Low, Medium, High or Critical)", s)
}

// StatusNew is the status of every freshly submitted record.
const StatusNew = "New"

// Record is one logged incident. Records are never modified after insert.
type Record struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
}

// SortOrder for listings.
type SortOrder string

const (
	TimeAsc      SortOrder = "time-asc"
	TimeDesc     SortOrder = "time-desc"
	SeverityAsc  SortOrder = "severity-asc"
	SeverityDesc SortOrder = "severity-desc"
)

// ParseSort maps a flag value to a SortOrder. Empty means TimeDesc.
func ParseSort(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case TimeAsc, TimeDesc, SeverityAsc, SeverityDesc:
		return o, nil
	case "":
		return TimeDesc, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Severity Severity
	// Text is matched case-insensitively as a substring of the subject or
	// the description.
	Text string
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.Text == "" {
		return true
	}
	needle := strings.ToLower(f.Text)
	return strings.Contains(strings.ToLower(r.Subject), needle) ||
		strings.Contains(strings.ToLower(r.Description), needle)
}

// Query is a listing request.
type Query struct {
	Sort   SortOrder
	Filter Filter
	// Limit caps the number of records returned; 0 means no limit.
	Limit int
}

// apply filters, sorts and limits records in place for the in-process
// stores. Severity ties fall back to creation time, oldest first.
func (q Query) apply(records []Record) []Record {
	out := records[:0]
	for _, r := range records {
		if q.Filter.Match(r) {
			out = append(out, r)
		}
	}

	byTime := func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	}
	var less func(i, j int) bool
	switch q.Sort {
	case TimeAsc:
		less = byTime
	case SeverityAsc, SeverityDesc:
		desc := q.Sort == SeverityDesc
		less = func(i, j int) bool {
			ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
			if ri != rj {
				return (ri > rj) == desc
			}
			return byTime(i, j)
		}
	default:
		less = func(i, j int) bool { return byTime(j, i) }
	}
	sort.SliceStable(out, less)

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
