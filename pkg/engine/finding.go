package engine

import (
	"fmt"
	"time"
)

// Severity grades a finding for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// Finding is one line of scan output, published as it is produced.
// Collector and check failures travel the same channel as normal findings.
type Finding struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Phase    string    `json:"phase"`
	Time     time.Time `json:"time"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s", f.Time.Format("15:04:05"), f.Message)
}
