// Package inventory describes the host being assessed: what it is, rather
// than how risky it looks.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	UptimeSeconds   uint64 `json:"uptime_seconds"`
	Virtualization  string `json:"virtualization,omitempty"`
}

type CPUInfo struct {
	Model         string  `json:"model"`
	MHz           float64 `json:"mhz"`
	LogicalCores  int     `json:"logical_cores"`
	PhysicalCores int     `json:"physical_cores"`
}

type MemoryInfo struct {
	TotalBytes     uint64  `json:"total_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedPct        float64 `json:"used_pct"`
	SwapTotalBytes uint64  `json:"swap_total_bytes"`
}

type Disk struct {
	Device     string  `json:"device"`
	Mountpoint string  `json:"mountpoint"`
	FSType     string  `json:"fstype"`
	TotalBytes uint64  `json:"total_bytes"`
	UsedPct    float64 `json:"used_pct"`
}

type Interface struct {
	Name      string   `json:"name"`
	MAC       string   `json:"mac,omitempty"`
	Addrs     []string `json:"addrs,omitempty"`
	Flags     []string `json:"flags,omitempty"`
	BytesSent uint64   `json:"bytes_sent"`
	BytesRecv uint64   `json:"bytes_recv"`
}

// Inventory is a best-effort description of the host. Sections that could
// not be read are left zero and named in Errors.
type Inventory struct {
	Host        HostInfo          `json:"host"`
	CPU         CPUInfo           `json:"cpu"`
	Memory      MemoryInfo        `json:"memory"`
	Disks       []Disk            `json:"disks"`
	Interfaces  []Interface       `json:"interfaces"`
	Errors      map[string]string `json:"errors,omitempty"`
	CollectedAt time.Time         `json:"collected_at"`
}

// Collect reads every section concurrently, each under timeout. Only
// cancellation of ctx fails the call.
func Collect(ctx context.Context, src Source, timeout time.Duration, logger *zap.Logger) (Inventory, error) {
	if src == nil {
		src = SystemSource{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		inv Inventory
		mu  sync.Mutex
	)
	section := func(name string, read func(ctx context.Context) error) func() error {
		return func() error {
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := read(sctx); err != nil {
				logger.Warn("inventory section unavailable", zap.String("section", name), zap.Error(err))
				mu.Lock()
				if inv.Errors == nil {
					inv.Errors = make(map[string]string)
				}
				inv.Errors[name] = err.Error()
				mu.Unlock()
			}
			return nil
		}
	}

	var g errgroup.Group
	g.Go(section("host", func(ctx context.Context) (err error) {
		inv.Host, err = src.Host(ctx)
		return err
	}))
	g.Go(section("cpu", func(ctx context.Context) (err error) {
		inv.CPU, err = src.CPU(ctx)
		return err
	}))
	g.Go(section("memory", func(ctx context.Context) (err error) {
		inv.Memory, err = src.Memory(ctx)
		return err
	}))
	g.Go(section("disks", func(ctx context.Context) (err error) {
		inv.Disks, err = src.Disks(ctx)
		return err
	}))
	g.Go(section("interfaces", func(ctx context.Context) (err error) {
		inv.Interfaces, err = src.Interfaces(ctx)
		return err
	}))
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Inventory{}, err
	}
	inv.CollectedAt = time.Now()
	return inv, nil
}

// Report renders the inventory for a terminal.
func (inv Inventory) Report() string {
	var sb strings.Builder
	h := inv.Host
	sb.WriteString(fmt.Sprintf("Host:       %s\n", orUnknown(h.Hostname)))
	sb.WriteString(fmt.Sprintf("OS:         %s %s (%s, kernel %s)\n", h.Platform, h.PlatformVersion, h.Arch, h.KernelVersion))
	if h.Virtualization != "" {
		sb.WriteString(fmt.Sprintf("Virtual:    %s\n", h.Virtualization))
	}
	sb.WriteString(fmt.Sprintf("CPU:        %s (%d logical / %d physical cores)\n", orUnknown(inv.CPU.Model), inv.CPU.LogicalCores, inv.CPU.PhysicalCores))
	sb.WriteString(fmt.Sprintf("Memory:     %s total, %.1f%% used\n", humanBytes(inv.Memory.TotalBytes), inv.Memory.UsedPct))

	if len(inv.Disks) > 0 {
		sb.WriteString("Disks:\n")
		for _, d := range inv.Disks {
			sb.WriteString(fmt.Sprintf("  %-20s %-12s %-8s %10s %5.1f%%\n", d.Mountpoint, d.Device, d.FSType, humanBytes(d.TotalBytes), d.UsedPct))
		}
	}
	if len(inv.Interfaces) > 0 {
		sb.WriteString("Interfaces:\n")
		for _, i := range inv.Interfaces {
			sb.WriteString(fmt.Sprintf("  %-12s %-18s %s (tx %s / rx %s)\n", i.Name, i.MAC, strings.Join(i.Addrs, ", "),
				humanBytes(i.BytesSent), humanBytes(i.BytesRecv)))
		}
	}
	names := make([]string, 0, len(inv.Errors))
	for name := range inv.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("[!] %s unavailable: %s\n", name, inv.Errors[name]))
	}
	return sb.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func humanBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
