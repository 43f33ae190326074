package checks

import (
	"fmt"
	"runtime"
	"strings"
)

// Verdict is the outcome of a single check.
type Verdict string

const (
	Pass  Verdict = "PASS"
	Fail  Verdict = "FAIL"
	Warn  Verdict = "WARN"
	Error Verdict = "ERROR"
)

// Result is the immutable output of one check.
type Result struct {
	Name    string  `json:"name"`
	Verdict Verdict `json:"verdict"`
	Detail  string  `json:"detail"`
	// Informational marks synthetic results that are not checks, such as
	// the unsupported platform notice. They are excluded from scoring.
	Informational bool `json:"informational,omitempty"`
}

func (r Result) String() string {
	return fmt.Sprintf("[%s] %s: %s", r.Verdict, r.Name, r.Detail)
}

// Platform is an operating-system family with its own checklist.
type Platform string

const (
	Windows Platform = "windows"
	Linux   Platform = "linux"
	Darwin  Platform = "darwin"
)

// Current returns the platform of the running process.
func Current() Platform { return Platform(runtime.GOOS) }

// ParsePlatform normalises user input such as "macOS" or "Windows".
// Unknown names are kept, lower-cased, so that the registry can report
// them as unsupported.
func ParsePlatform(s string) Platform {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "auto":
		return Current()
	case "mac", "macos", "osx":
		return Darwin
	case "win", "win32":
		return Windows
	default:
		return Platform(v)
	}
}

// ExecutionError reports that a check's host probe failed. It becomes an
// ERROR verdict for that check only.
type ExecutionError struct {
	Check string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("check %q: %v", e.Check, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// UnsupportedPlatformError is returned when no checklist exists for a
// platform.
type UnsupportedPlatformError struct {
	Platform Platform
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %s", e.Platform)
}
