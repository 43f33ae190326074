package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/gosec-posture/pkg/checks"
	"github.com/user/gosec-posture/pkg/collector"
)

// maxListed caps the per-item findings of the threat pass.
const maxListed = 10

// cpuAlertPct is the CPU usage above which the threat pass warns.
const cpuAlertPct = 90

// phase is one step of a scan. Its output is buffered and only committed
// to the scan state once run returns with the scan still live.
type phase struct {
	label string
	run   func(ctx context.Context, out *phaseOutput)
}

type phaseOutput struct {
	label    string
	findings []Finding
	checks   []checks.Result
	apply    []func(b *collector.Builder)
	failed   []collector.Signal
}

func (o *phaseOutput) add(sev Severity, format string, args ...any) {
	o.findings = append(o.findings, Finding{
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
		Phase:    o.label,
		Time:     time.Now(),
	})
}

// collectionFailed degrades a signal to unknown and reports it as a
// warning finding.
func (o *phaseOutput) collectionFailed(err error) {
	var cerr *collector.CollectionError
	if errors.As(err, &cerr) {
		o.failed = append(o.failed, cerr.Signal)
		o.add(SeverityWarning, "Could not read %s: %s", cerr.Signal, cerr.Reason)
		return
	}
	o.add(SeverityWarning, "Collection failed: %v", err)
}

// plan lays out the phases for mode. Finalize is not part of the plan; it
// is always the last step and is run by the scanner itself.
func (s *Scanner) plan(mode Mode) ([]phase, error) {
	var phases []phase
	if mode.collectsSignals() {
		c := s.cfg.Risk
		verbose := mode == ModeThreat
		if verbose {
			c = s.cfg.Threat
		}
		if c == nil {
			return nil, fmt.Errorf("no collector configured for %s scans", mode)
		}
		phases = append(phases,
			processPhase(c, verbose),
			networkPhase(c, verbose),
			loadPhase(c, verbose),
		)
	}
	if mode.runsChecks() {
		if s.cfg.Registry == nil {
			return nil, fmt.Errorf("no check registry configured for %s scans", mode)
		}
		phases = append(phases, s.checkPhases()...)
	}
	return phases, nil
}

func processPhase(c *collector.Collector, verbose bool) phase {
	return phase{label: "Scanning processes", run: func(ctx context.Context, out *phaseOutput) {
		procs, err := c.HighMemoryProcesses(ctx)
		if err != nil {
			out.collectionFailed(err)
			return
		}
		out.apply = append(out.apply, func(b *collector.Builder) {
			b.SetHighMemoryProcessCount(uint32(len(procs)))
		})
		out.add(SeverityInfo, "Processes using >%dMB: %d", c.Threshold(), len(procs))
		if !verbose {
			return
		}
		for i, p := range procs {
			if i == maxListed {
				out.add(SeverityWarning, "... and %d more high memory processes", len(procs)-maxListed)
				break
			}
			out.add(SeverityWarning, "High memory process: %s (pid %d) using %d MB", p.Name, p.PID, p.RSSBytes/(1024*1024))
		}
	}}
}

func networkPhase(c *collector.Collector, verbose bool) phase {
	return phase{label: "Scanning network connections", run: func(ctx context.Context, out *phaseOutput) {
		conns, err := c.ExternalConnections(ctx)
		if err != nil {
			out.collectionFailed(err)
			return
		}
		out.apply = append(out.apply, func(b *collector.Builder) {
			b.SetExternalConnectionCount(uint32(len(conns)))
		})
		out.add(SeverityInfo, "External connections: %d", len(conns))
		if !verbose {
			return
		}
		for i, conn := range conns {
			if i == maxListed {
				out.add(SeverityWarning, "... and %d more external connections", len(conns)-maxListed)
				break
			}
			out.add(SeverityWarning, "External connection to %s:%d (pid %d)", conn.RemoteIP, conn.RemotePort, conn.PID)
		}
	}}
}

func loadPhase(c *collector.Collector, verbose bool) phase {
	return phase{label: "Checking system load", run: func(ctx context.Context, out *phaseOutput) {
		load, err := c.SystemLoad(ctx)
		if err != nil {
			// Only cancellation fails the whole reading; the scanner
			// discards this phase.
			return
		}
		for _, err := range load.Errors {
			out.collectionFailed(err)
		}
		out.apply = append(out.apply, func(b *collector.Builder) { collector.ApplyLoad(b, load) })
		if !load.Unknown.Has(collector.SignalUptime) {
			out.add(SeverityInfo, "System uptime: %s", formatUptime(load.UptimeSeconds))
		}
		if !load.Unknown.Has(collector.SignalMemory) {
			out.add(SeverityInfo, "Memory usage: %.1f%%", load.MemoryUsedPct)
		}
		if !load.Unknown.Has(collector.SignalCPU) {
			out.add(SeverityInfo, "CPU usage: %.1f%%", load.CPUUsedPct)
			if verbose && load.CPUUsedPct > cpuAlertPct {
				out.add(SeverityWarning, "High CPU usage: %.1f%%", load.CPUUsedPct)
			}
		}
	}}
}

// checkPhases gives every check of the checklist its own phase so that
// progress advances per check.
func (s *Scanner) checkPhases() []phase {
	reg, platform := s.cfg.Registry, s.cfg.Platform
	list, err := reg.Checklist(platform)
	if err != nil {
		return []phase{{label: "Checking security controls", run: func(_ context.Context, out *phaseOutput) {
			out.checks = append(out.checks, checks.UnsupportedResult(platform))
			out.add(SeverityError, "Compliance checks are not available: %v", err)
		}}}
	}

	phases := make([]phase, 0, len(list))
	for _, c := range list {
		c := c
		phases = append(phases, phase{label: "Checking " + c.Name, run: func(ctx context.Context, out *phaseOutput) {
			res := reg.RunCheck(ctx, c)
			out.checks = append(out.checks, res)
			out.add(verdictSeverity(res.Verdict), "%s: %s - %s", res.Name, res.Verdict, res.Detail)
		}})
	}
	return phases
}

func verdictSeverity(v checks.Verdict) Severity {
	switch v {
	case checks.Pass:
		return SeveritySuccess
	case checks.Fail:
		return SeverityError
	default:
		return SeverityWarning
	}
}

func formatUptime(secs uint64) string {
	d := time.Duration(secs) * time.Second
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dh %dm", hours, int(d.Minutes())%60)
}
