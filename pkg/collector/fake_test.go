package collector

import (
	"context"
	"time"
)

type fakeHost struct {
	uptime    uint64
	mem       float64
	cpu       float64
	procs     []ProcessInfo
	conns     []Connection
	uptimeErr error
	memErr    error
	cpuErr    error
	procErr   error
	connErr   error
	hang      bool
}

func (f *fakeHost) wait(ctx context.Context) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeHost) Uptime(ctx context.Context) (uint64, error) {
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	return f.uptime, f.uptimeErr
}

func (f *fakeHost) MemoryUsedPercent(ctx context.Context) (float64, error) {
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	return f.mem, f.memErr
}

func (f *fakeHost) CPUPercent(ctx context.Context, _ time.Duration) (float64, error) {
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	return f.cpu, f.cpuErr
}

func (f *fakeHost) Processes(ctx context.Context) ([]ProcessInfo, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.procs, f.procErr
}

func (f *fakeHost) Connections(ctx context.Context) ([]Connection, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.conns, f.connErr
}
