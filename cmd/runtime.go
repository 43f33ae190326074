package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/gosec-posture/pkg/checks"
	"github.com/user/gosec-posture/pkg/collector"
	"github.com/user/gosec-posture/pkg/config"
	"github.com/user/gosec-posture/pkg/engine"
	"github.com/user/gosec-posture/pkg/incident"
	"github.com/user/gosec-posture/pkg/inventory"
	"github.com/user/gosec-posture/pkg/metrics"
)

// runtime holds everything a command needs, built once from the config.
type runtime struct {
	cfg         *config.Config
	logger      *zap.Logger
	metrics     *metrics.Metrics
	registry    *checks.Registry
	remediation *engine.RemediationEngine
	platform    checks.Platform
}

func newRuntime() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{logger: logger, metrics: metrics.New(), platform: checks.Current()}
	if err := rt.reconfigure(cfg); err != nil {
		return nil, err
	}
	return rt, nil
}

// reconfigure rebuilds the probe runner, registry, profiles and
// remediation templates from cfg. On error rt is left unchanged. The
// logger and metrics registry live for the whole process.
func (rt *runtime) reconfigure(cfg *config.Config) error {
	runner := checks.NewExecRunner(cfg.Checks.Timeout, cfg.Checks.BreakerFailures, cfg.Checks.BreakerCooldown, rt.logger)
	registry := checks.NewRegistry(runner, rt.logger)
	remediation, err := engine.NewRemediationEngine()
	if err != nil {
		return err
	}

	if dir := cfg.Checks.ProfileDir; dir != "" {
		profiles, err := checks.LoadProfiles(dir)
		if err != nil {
			return fmt.Errorf("load profiles from %s: %w", dir, err)
		}
		for _, p := range profiles {
			registry.AddProfile(p)
			rt.logger.Debug("loaded compliance profile", zap.String("standard", p.Standard), zap.Int("controls", len(p.Controls)))
		}
		remediation.AddProfileHints(profiles)
	}
	if dir := cfg.Checks.RemediationDir; dir != "" {
		if err := remediation.LoadTemplates(dir); err != nil {
			return fmt.Errorf("load remediation templates from %s: %w", dir, err)
		}
	}

	rt.cfg, rt.registry, rt.remediation = cfg, registry, remediation
	return nil
}

func (rt *runtime) close() {
	_ = rt.logger.Sync()
}

// collectors builds the risk and threat collectors from the current
// thresholds.
func (rt *runtime) collectors(cfg *config.Config) (risk, threat *collector.Collector, err error) {
	opts := collector.Options{
		ProcessMemoryThresholdMB: cfg.Thresholds.RiskProcessMemoryMB,
		Timeout:                  cfg.Collector.Timeout,
		CPUSampleInterval:        cfg.Collector.CPUSampleInterval,
		PrivateRanges:            cfg.Network.PrivateRanges,
	}
	if risk, err = collector.New(nil, opts, rt.logger); err != nil {
		return nil, nil, err
	}
	opts.ProcessMemoryThresholdMB = cfg.Thresholds.ThreatProcessMemoryMB
	if threat, err = collector.New(nil, opts, rt.logger); err != nil {
		return nil, nil, err
	}
	return risk, threat, nil
}

func (rt *runtime) scanner(cfg *config.Config, obs engine.Observer) (*engine.Scanner, error) {
	risk, threat, err := rt.collectors(cfg)
	if err != nil {
		return nil, err
	}
	return engine.NewScanner(engine.Config{
		Risk:     risk,
		Threat:   threat,
		Registry: rt.registry,
		Platform: rt.platform,
		Observer: obs,
		Metrics:  rt.metrics,
		Logger:   rt.logger,
	}), nil
}

// scan is the wrappers.ScanFunc used by the agent tools.
func (rt *runtime) scan(ctx context.Context, mode engine.Mode, obs engine.Observer) (engine.Result, error) {
	s, err := rt.scanner(rt.cfg, obs)
	if err != nil {
		return engine.Result{}, err
	}
	return s.Run(ctx, mode)
}

func (rt *runtime) incidents(ctx context.Context) (*incident.Service, func(), error) {
	store, err := incident.Open(ctx, rt.cfg, rt.logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			rt.logger.Warn("closing incident store", zap.Error(err))
		}
	}
	return incident.NewService(store, rt.metrics, rt.logger), closeFn, nil
}

func (rt *runtime) inventory(ctx context.Context) (inventory.Inventory, error) {
	return inventory.Collect(ctx, inventory.SystemSource{}, rt.cfg.Collector.Timeout, rt.logger)
}

