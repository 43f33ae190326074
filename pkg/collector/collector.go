package collector

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errNoCPUSample = errors.New("no cpu sample returned")

const bytesPerMB = 1024 * 1024

// Options configures a Collector.
type Options struct {
	// ProcessMemoryThresholdMB is the RSS above which a process counts as
	// high-memory. The risk and threat passes use different values.
	ProcessMemoryThresholdMB uint64
	Timeout                  time.Duration
	CPUSampleInterval        time.Duration
	PrivateRanges            []string
}

// Collector reads host signals through a Host, bounding every call.
type Collector struct {
	host       Host
	opts       Options
	classifier *Classifier
	logger     *zap.Logger
}

func New(h Host, opts Options, logger *zap.Logger) (*Collector, error) {
	if h == nil {
		h = SystemHost{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.ProcessMemoryThresholdMB == 0 {
		opts.ProcessMemoryThresholdMB = 100
	}
	cls, err := NewClassifier(opts.PrivateRanges)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{host: h, opts: opts, classifier: cls, logger: logger}, nil
}

// Threshold returns the high-memory threshold in MB.
func (c *Collector) Threshold() uint64 { return c.opts.ProcessMemoryThresholdMB }

// Classifier exposes the external-address classifier.
func (c *Collector) Classifier() *Classifier { return c.classifier }

// bounded runs fn with the collector timeout. The call is abandoned, not
// awaited, when the deadline passes, so a hung OS call cannot stall a scan.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Collector) fail(sig Signal, err error) error {
	cerr := collectionError(sig, err)
	c.logger.Warn("signal collection failed",
		zap.String("signal", sig.String()),
		zap.Bool("timeout", cerr.Timeout()),
		zap.Error(err))
	return cerr
}

func (c *Collector) Uptime(ctx context.Context) (uint64, error) {
	v, err := bounded(ctx, c.opts.Timeout, c.host.Uptime)
	if err != nil {
		return 0, c.fail(SignalUptime, err)
	}
	return v, nil
}

func (c *Collector) MemoryUsedPct(ctx context.Context) (float32, error) {
	v, err := bounded(ctx, c.opts.Timeout, c.host.MemoryUsedPercent)
	if err != nil {
		return 0, c.fail(SignalMemory, err)
	}
	return float32(v), nil
}

func (c *Collector) CPUUsedPct(ctx context.Context) (float32, error) {
	// The sample interval is spent inside the call, so it is added to the
	// budget rather than eating into it.
	v, err := bounded(ctx, c.opts.Timeout+c.opts.CPUSampleInterval, func(ctx context.Context) (float64, error) {
		return c.host.CPUPercent(ctx, c.opts.CPUSampleInterval)
	})
	if err != nil {
		return 0, c.fail(SignalCPU, err)
	}
	return float32(v), nil
}

// HighMemoryProcesses returns processes whose RSS exceeds the threshold,
// largest first.
func (c *Collector) HighMemoryProcesses(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := bounded(ctx, c.opts.Timeout, c.host.Processes)
	if err != nil {
		return nil, c.fail(SignalProcesses, err)
	}
	limit := c.opts.ProcessMemoryThresholdMB * bytesPerMB
	var out []ProcessInfo
	for _, p := range procs {
		if p.RSSBytes > limit {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RSSBytes > out[j].RSSBytes })
	return out, nil
}

// ExternalConnections returns established connections to addresses outside
// the private ranges.
func (c *Collector) ExternalConnections(ctx context.Context) ([]Connection, error) {
	conns, err := bounded(ctx, c.opts.Timeout, c.host.Connections)
	if err != nil {
		return nil, c.fail(SignalConnections, err)
	}
	var out []Connection
	for _, conn := range conns {
		if conn.Status != Established || conn.RemoteIP == "" {
			continue
		}
		if c.classifier.IsExternal(conn.RemoteIP) {
			out = append(out, conn)
		}
	}
	return out, nil
}

// Load is the system-load reading: uptime, memory and CPU.
type Load struct {
	UptimeSeconds uint64
	MemoryUsedPct float32
	CPUUsedPct    float32
	Unknown       SignalSet
	Errors        []error
}

// SystemLoad reads uptime, memory and CPU concurrently. Failed readings
// are reported in Errors and marked in Unknown; the call itself only
// fails when ctx is cancelled.
func (c *Collector) SystemLoad(ctx context.Context) (Load, error) {
	var (
		load                  Load
		upErr, memErr, cpuErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		load.UptimeSeconds, upErr = c.Uptime(gctx)
		return nil
	})
	g.Go(func() error {
		load.MemoryUsedPct, memErr = c.MemoryUsedPct(gctx)
		return nil
	})
	g.Go(func() error {
		load.CPUUsedPct, cpuErr = c.CPUUsedPct(gctx)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Load{}, err
	}

	for _, r := range []struct {
		sig Signal
		err error
	}{{SignalUptime, upErr}, {SignalMemory, memErr}, {SignalCPU, cpuErr}} {
		if r.err != nil {
			load.Unknown = load.Unknown.With(r.sig)
			load.Errors = append(load.Errors, r.err)
		}
	}
	return load, nil
}

// Snapshot reads every signal in one go. Collection is best-effort: the
// returned errors are the CollectionErrors for the fields left unknown.
func (c *Collector) Snapshot(ctx context.Context) (Snapshot, []error) {
	b := NewBuilder()
	var errs []error

	if procs, err := c.HighMemoryProcesses(ctx); err != nil {
		errs = append(errs, err)
	} else {
		b.SetHighMemoryProcessCount(uint32(len(procs)))
	}
	if conns, err := c.ExternalConnections(ctx); err != nil {
		errs = append(errs, err)
	} else {
		b.SetExternalConnectionCount(uint32(len(conns)))
	}
	load, err := c.SystemLoad(ctx)
	if err != nil {
		return b.Build(time.Now()), append(errs, err)
	}
	ApplyLoad(b, load)
	errs = append(errs, load.Errors...)
	return b.Build(time.Now()), errs
}

// ApplyLoad copies the known parts of load into b.
func ApplyLoad(b *Builder, load Load) {
	if !load.Unknown.Has(SignalUptime) {
		b.SetUptime(load.UptimeSeconds)
	}
	if !load.Unknown.Has(SignalMemory) {
		b.SetMemoryUsedPct(load.MemoryUsedPct)
	}
	if !load.Unknown.Has(SignalCPU) {
		b.SetCPUUsedPct(load.CPUUsedPct)
	}
}
