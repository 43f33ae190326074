package checks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ProbeFunc asks the host for one control state and interprets it. A
// returned error becomes an ERROR verdict.
type ProbeFunc func(ctx context.Context, r Runner) (Verdict, string, error)

// Check is a named control bound to one platform checklist.
type Check struct {
	ID    string
	Name  string
	Probe ProbeFunc
}

// Registry maps each platform to its ordered checklist.
type Registry struct {
	runner Runner
	logger *zap.Logger

	mu    sync.RWMutex
	table map[Platform][]Check
}

// NewRegistry returns a registry holding the built-in checklists.
func NewRegistry(r Runner, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		runner: r,
		logger: logger,
		table: map[Platform][]Check{
			Windows: windowsChecklist(),
			Linux:   linuxChecklist(),
			Darwin:  darwinChecklist(),
		},
	}
}

// Register appends c to the checklist of p, creating it when needed.
func (r *Registry) Register(p Platform, c Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[p] = append(r.table[p], c)
}

// Checklist returns the checks for p in registration order.
func (r *Registry) Checklist(p Platform) ([]Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, ok := r.table[p]
	if !ok || len(list) == 0 {
		return nil, &UnsupportedPlatformError{Platform: p}
	}
	out := make([]Check, len(list))
	copy(out, list)
	return out, nil
}

// Platforms lists the platforms that have a checklist.
func (r *Registry) Platforms() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Platform, 0, len(r.table))
	for p, list := range r.table {
		if len(list) > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UnsupportedResult is the synthetic result reported for a platform
// without a checklist.
func UnsupportedResult(p Platform) Result {
	return Result{
		Name:          "Platform Support",
		Verdict:       Error,
		Detail:        fmt.Sprintf("Unsupported OS: %s", p),
		Informational: true,
	}
}

// RunCheck executes one check. It never fails: probe errors and panics are
// reported as an ERROR verdict.
func (r *Registry) RunCheck(ctx context.Context, c Check) (res Result) {
	res.Name = c.Name
	defer func() {
		if rec := recover(); rec != nil {
			res = r.errorResult(c, fmt.Errorf("probe panicked: %v", rec))
		}
	}()

	verdict, detail, err := c.Probe(ctx, r.runner)
	if err != nil {
		return r.errorResult(c, err)
	}
	return Result{Name: c.Name, Verdict: verdict, Detail: detail}
}

func (r *Registry) errorResult(c Check, err error) Result {
	execErr := &ExecutionError{Check: c.Name, Err: err}
	r.logger.Warn("check failed", zap.String("check", c.ID), zap.Error(execErr))
	return Result{Name: c.Name, Verdict: Error, Detail: fmt.Sprintf("Could not check %s: %v", c.Name, err)}
}

// Run executes the checklist for p in order. An unsupported platform
// yields the single informational result and an UnsupportedPlatformError.
// When ctx is cancelled the results so far are returned with ctx.Err().
func (r *Registry) Run(ctx context.Context, p Platform) ([]Result, error) {
	list, err := r.Checklist(p)
	if err != nil {
		return []Result{UnsupportedResult(p)}, err
	}
	results := make([]Result, 0, len(list))
	for _, c := range list {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, r.RunCheck(ctx, c))
	}
	return results, nil
}
