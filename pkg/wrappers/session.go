package wrappers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/user/gosec-posture/pkg/engine"
)

// ScanFunc runs one scan to completion. The CLI supplies it so that tools
// share the configured collectors and registry.
type ScanFunc func(ctx context.Context, mode engine.Mode, obs engine.Observer) (engine.Result, error)

// Session carries state between the tool calls of one conversation.
type Session struct {
	mu   sync.Mutex
	last *engine.Result
}

func (s *Session) Record(r engine.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
}

// Last returns the most recent completed scan.
func (s *Session) Last() (engine.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return engine.Result{}, false
	}
	return *s.last, true
}

// progressObserver forwards phase changes to the agent's progress line.
func progressObserver(progress func(string)) engine.Observer {
	return engine.ObserverFuncs{
		Progress: func(pct int, label string) {
			if progress != nil {
				progress(fmt.Sprintf("[%3d%%] %s", pct, label))
			}
		},
	}
}

// scanFailure turns a scan error into text the model can relay.
func scanFailure(err error) string {
	switch {
	case errors.Is(err, engine.ErrScanCancelled), errors.Is(err, context.Canceled):
		return "Scan cancelled. No score was produced."
	case errors.Is(err, engine.ErrScanRunning):
		return "Another scan is already running. Try again when it finishes."
	default:
		return fmt.Sprintf("Scan failed: %v", err)
	}
}

func argString(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func argBool(args map[string]interface{}, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	}
	return false
}

// argInt accepts the float64 that JSON decoding produces.
func argInt(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// formatResult renders a scan for the model: the score first, then what
// needs attention.
func formatResult(res engine.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Scan %s (%s): %s\n", res.ID, res.Mode, res.Summary()))
	if res.Risk != nil {
		for _, c := range res.Risk.Contributions {
			sb.WriteString(fmt.Sprintf("  [+%d] %s\n", c.Points, c.Reason))
		}
	}
	if res.Signals != nil && res.Signals.Unknown != 0 {
		sb.WriteString(fmt.Sprintf("  Signals not collected: %s\n", res.Signals.Unknown))
	}
	if len(res.Checks) > 0 {
		sb.WriteString("Checks:\n")
		for _, c := range res.Checks {
			sb.WriteString(fmt.Sprintf("  %s\n", c))
		}
	}
	var notes []string
	for _, f := range res.Findings {
		if f.Severity == engine.SeverityWarning || f.Severity == engine.SeverityError {
			notes = append(notes, f.Message)
		}
	}
	if len(notes) > 0 {
		sb.WriteString("Findings:\n")
		for _, n := range notes {
			sb.WriteString("  - " + n + "\n")
		}
	}
	return sb.String()
}
