package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo is the subset of a process table entry the engine uses.
type ProcessInfo struct {
	PID      int32  `json:"pid"`
	Name     string `json:"name"`
	RSSBytes uint64 `json:"rss_bytes"`
}

// Connection is one socket from the host connection table.
type Connection struct {
	Status     string `json:"status"`
	LocalPort  uint32 `json:"local_port"`
	RemoteIP   string `json:"remote_ip"`
	RemotePort uint32 `json:"remote_port"`
	PID        int32  `json:"pid"`
}

// Established is the connection status counted by the network phase.
const Established = "ESTABLISHED"

// Host is the OS abstraction behind every collector.
type Host interface {
	Uptime(ctx context.Context) (uint64, error)
	MemoryUsedPercent(ctx context.Context) (float64, error)
	CPUPercent(ctx context.Context, interval time.Duration) (float64, error)
	Processes(ctx context.Context) ([]ProcessInfo, error)
	Connections(ctx context.Context) ([]Connection, error)
}

// SystemHost reads the local machine through gopsutil.
type SystemHost struct{}

func (SystemHost) Uptime(ctx context.Context) (uint64, error) {
	return host.UptimeWithContext(ctx)
}

func (SystemHost) MemoryUsedPercent(ctx context.Context) (float64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return v.UsedPercent, nil
}

func (SystemHost) CPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, errNoCPUSample
	}
	return pct[0], nil
}

// Processes lists processes, skipping entries that vanish or deny access
// while being read.
func (SystemHost) Processes(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mi, err := p.MemoryInfoWithContext(ctx)
		if err != nil || mi == nil {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		out = append(out, ProcessInfo{PID: p.Pid, Name: name, RSSBytes: mi.RSS})
	}
	return out, nil
}

func (SystemHost) Connections(ctx context.Context) ([]Connection, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, Connection{
			Status:     c.Status,
			LocalPort:  c.Laddr.Port,
			RemoteIP:   c.Raddr.IP,
			RemotePort: c.Raddr.Port,
			PID:        c.Pid,
		})
	}
	return out, nil
}
