package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/gosec-posture/pkg/checks"
	"github.com/user/gosec-posture/pkg/collector"
)

const mb = 1024 * 1024

// fakeHost serves fixed readings. When connGate is set, Connections
// signals connEntered and then blocks until its context ends.
type fakeHost struct {
	uptime  uint64
	mem     float64
	cpu     float64
	procs   []collector.ProcessInfo
	conns   []collector.Connection
	procErr error

	connGate    bool
	connEntered chan struct{}
	enterOnce   sync.Once
}

func (f *fakeHost) Uptime(context.Context) (uint64, error) { return f.uptime, nil }
func (f *fakeHost) MemoryUsedPercent(context.Context) (float64, error) { return f.mem, nil }
func (f *fakeHost) CPUPercent(context.Context, time.Duration) (float64, error) {
	return f.cpu, nil
}

func (f *fakeHost) Processes(context.Context) ([]collector.ProcessInfo, error) {
	return f.procs, f.procErr
}

func (f *fakeHost) Connections(ctx context.Context) ([]collector.Connection, error) {
	if f.connGate {
		f.enterOnce.Do(func() { close(f.connEntered) })
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.conns, nil
}

// riskyHost reproduces the 8 days / 95% / 6 / 6 / 95% reading.
func riskyHost() *fakeHost {
	h := &fakeHost{uptime: 8 * 24 * 3600, mem: 95, cpu: 95}
	for i := 0; i < 6; i++ {
		h.procs = append(h.procs, collector.ProcessInfo{PID: int32(100 + i), Name: "worker", RSSBytes: 200 * mb})
		h.conns = append(h.conns, collector.Connection{
			Status: collector.Established, RemoteIP: "8.8.8.8", RemotePort: 443, PID: int32(100 + i),
		})
	}
	return h
}

func blockingHost() *fakeHost {
	h := riskyHost()
	h.connGate = true
	h.connEntered = make(chan struct{})
	return h
}

type fakeRunner struct {
	replies map[string]checks.Output
	errs    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (checks.Output, error) {
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if err, ok := f.errs[key]; ok {
		return checks.Output{}, err
	}
	if out, ok := f.replies[key]; ok {
		return out, nil
	}
	return checks.Output{}, errors.New(name + ": not found")
}

// linuxRunner answers the Linux checklist with PASS, FAIL, PASS, ERROR.
func linuxRunner() *fakeRunner {
	return &fakeRunner{
		replies: map[string]checks.Output{
			"ufw status":                              {Stdout: "Status: active\n"},
			"systemctl is-active clamav-daemon":       {Stdout: "inactive\n", ExitCode: 3},
			"systemctl is-active unattended-upgrades": {Stdout: "active\n"},
		},
		errs: map[string]error{"lsblk -rno NAME,TYPE": errors.New("lsblk: permission denied")},
	}
}

type recorder struct {
	mu        sync.Mutex
	progress  []int
	labels    []string
	findings  []Finding
	completed []Result
}

func (r *recorder) OnProgress(pct int, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, pct)
	r.labels = append(r.labels, label)
}

func (r *recorder) OnFinding(f Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = append(r.findings, f)
}

func (r *recorder) OnComplete(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, res)
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.findings))
	for i, f := range r.findings {
		out[i] = f.Message
	}
	return out
}

func newTestScanner(t *testing.T, h collector.Host, platform checks.Platform, obs Observer) *Scanner {
	t.Helper()
	risk, err := collector.New(h, collector.Options{ProcessMemoryThresholdMB: 100, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	threat, err := collector.New(h, collector.Options{ProcessMemoryThresholdMB: 500, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	return NewScanner(Config{
		Risk:     risk,
		Threat:   threat,
		Registry: checks.NewRegistry(linuxRunner(), nil),
		Platform: platform,
		Observer: obs,
	})
}
