package collector

import (
	"strings"
	"time"
)

// Signal names one host measurement.
type Signal uint8

const (
	SignalUptime Signal = 1 << iota
	SignalMemory
	SignalCPU
	SignalProcesses
	SignalConnections
)

var signalNames = []struct {
	s    Signal
	name string
}{
	{SignalUptime, "uptime"},
	{SignalMemory, "memory"},
	{SignalCPU, "cpu"},
	{SignalProcesses, "processes"},
	{SignalConnections, "connections"},
}

func (s Signal) String() string {
	for _, n := range signalNames {
		if n.s == s {
			return n.name
		}
	}
	return "unknown"
}

// SignalSet is a set of signals, used to mark which snapshot fields could
// not be read.
type SignalSet uint8

func (s SignalSet) Has(sig Signal) bool { return s&SignalSet(sig) != 0 }

func (s SignalSet) With(sig Signal) SignalSet { return s | SignalSet(sig) }

func (s SignalSet) Names() []string {
	var out []string
	for _, n := range signalNames {
		if s.Has(n.s) {
			out = append(out, n.name)
		}
	}
	return out
}

func (s SignalSet) String() string { return strings.Join(s.Names(), ",") }

// Snapshot is the immutable set of host signals gathered by one scan.
// Fields listed in Unknown hold zero values and must not be scored.
type Snapshot struct {
	UptimeSeconds           uint64    `json:"uptime_seconds"`
	MemoryUsedPct           float32   `json:"memory_used_pct"`
	CPUUsedPct              float32   `json:"cpu_used_pct"`
	HighMemoryProcessCount  uint32    `json:"high_memory_process_count"`
	ExternalConnectionCount uint32    `json:"external_connection_count"`
	Unknown                 SignalSet `json:"unknown,omitempty"`
	CollectedAt             time.Time `json:"collected_at"`
}

// Known reports whether sig was read successfully.
func (s Snapshot) Known(sig Signal) bool { return !s.Unknown.Has(sig) }

// Builder accumulates signals across scan phases. Only Build hands out a
// Snapshot, so the value a scan reports is never modified afterwards.
type Builder struct {
	snap Snapshot
}

// NewBuilder starts with every signal unknown.
func NewBuilder() *Builder {
	var all SignalSet
	for _, n := range signalNames {
		all = all.With(n.s)
	}
	return &Builder{snap: Snapshot{Unknown: all}}
}

func (b *Builder) known(sig Signal) { b.snap.Unknown &^= SignalSet(sig) }

func (b *Builder) SetUptime(secs uint64) *Builder {
	b.snap.UptimeSeconds = secs
	b.known(SignalUptime)
	return b
}

func (b *Builder) SetMemoryUsedPct(pct float32) *Builder {
	b.snap.MemoryUsedPct = pct
	b.known(SignalMemory)
	return b
}

func (b *Builder) SetCPUUsedPct(pct float32) *Builder {
	b.snap.CPUUsedPct = pct
	b.known(SignalCPU)
	return b
}

func (b *Builder) SetHighMemoryProcessCount(n uint32) *Builder {
	b.snap.HighMemoryProcessCount = n
	b.known(SignalProcesses)
	return b
}

func (b *Builder) SetExternalConnectionCount(n uint32) *Builder {
	b.snap.ExternalConnectionCount = n
	b.known(SignalConnections)
	return b
}

func (b *Builder) Build(at time.Time) Snapshot {
	s := b.snap
	s.CollectedAt = at
	return s
}
