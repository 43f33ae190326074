package inventory

import (
	"context"
	"sort"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Source reads host facts. SystemSource is the real implementation.
type Source interface {
	Host(ctx context.Context) (HostInfo, error)
	CPU(ctx context.Context) (CPUInfo, error)
	Memory(ctx context.Context) (MemoryInfo, error)
	Disks(ctx context.Context) ([]Disk, error)
	Interfaces(ctx context.Context) ([]Interface, error)
}

// SystemSource reads the local host through gopsutil.
type SystemSource struct{}

func (SystemSource) Host(ctx context.Context) (HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostInfo{}, err
	}
	return HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            info.KernelArch,
		UptimeSeconds:   info.Uptime,
		Virtualization:  info.VirtualizationSystem,
	}, nil
}

func (SystemSource) CPU(ctx context.Context) (CPUInfo, error) {
	var out CPUInfo
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return out, err
	}
	out.LogicalCores = logical
	// Physical counts are unavailable on some virtual machines.
	if physical, err := cpu.CountsWithContext(ctx, false); err == nil {
		out.PhysicalCores = physical
	}
	infos, err := cpu.InfoWithContext(ctx)
	if err == nil && len(infos) > 0 {
		out.Model = infos[0].ModelName
		out.MHz = infos[0].Mhz
	}
	return out, nil
}

func (SystemSource) Memory(ctx context.Context) (MemoryInfo, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryInfo{}, err
	}
	out := MemoryInfo{TotalBytes: v.Total, AvailableBytes: v.Available, UsedPct: v.UsedPercent}
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		out.SwapTotalBytes = sw.Total
	}
	return out, nil
}

func (SystemSource) Disks(ctx context.Context) ([]Disk, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]Disk, 0, len(parts))
	for _, p := range parts {
		d := Disk{Device: p.Device, Mountpoint: p.Mountpoint, FSType: p.Fstype}
		if u, err := disk.UsageWithContext(ctx, p.Mountpoint); err == nil {
			d.TotalBytes = u.Total
			d.UsedPct = u.UsedPercent
		}
		out = append(out, d)
	}
	return out, nil
}

func (SystemSource) Interfaces(ctx context.Context) ([]Interface, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	counters := map[string]psnet.IOCountersStat{}
	if io, err := psnet.IOCountersWithContext(ctx, true); err == nil {
		for _, c := range io {
			counters[c.Name] = c
		}
	}

	out := make([]Interface, 0, len(ifaces))
	for _, i := range ifaces {
		it := Interface{Name: i.Name, MAC: i.HardwareAddr, Flags: i.Flags}
		for _, a := range i.Addrs {
			it.Addrs = append(it.Addrs, a.Addr)
		}
		if c, ok := counters[i.Name]; ok {
			it.BytesSent = c.BytesSent
			it.BytesRecv = c.BytesRecv
		}
		out = append(out, it)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}
