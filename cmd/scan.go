package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/gosec-posture/pkg/config"
	"github.com/user/gosec-posture/pkg/engine"
)

var (
	scanWatch       time.Duration
	scanBaseline    string
	scanRemediate   bool
	scanMetricsAddr string
	scanJSON        bool
)

var scanCmd = &cobra.Command{
	Use:       "scan [risk|threat|compliance|full]",
	Short:     "Assess the security posture of this host",
	ValidArgs: []string{"risk", "threat", "compliance", "full"},
	Args:      cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var modeArg string
		if len(args) > 0 {
			modeArg = args[0]
		}
		mode, err := engine.ParseMode(modeArg)
		if err != nil {
			return err
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		if scanWatch > 0 {
			return watchScans(cmd.Context(), rt, mode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := rt.scanner(rt.cfg, consoleObserver(scanJSON))
		if err != nil {
			return err
		}
		res, err := s.Run(ctx, mode)
		if errors.Is(err, engine.ErrScanCancelled) {
			fmt.Fprintln(humanOut(), "\nScan cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		return report(rt, res)
	},
}

func init() {
	scanCmd.Flags().DurationVar(&scanWatch, "watch", 0, "Re-run the scan on this interval until interrupted")
	scanCmd.Flags().StringVar(&scanBaseline, "baseline", "", "Compare against this baseline file, or save one if it does not exist")
	scanCmd.Flags().BoolVar(&scanRemediate, "remediate", false, "Print remediation plans for failed checks")
	scanCmd.Flags().StringVar(&scanMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the final result as JSON")
	rootCmd.AddCommand(scanCmd)
}

// consoleObserver prints progress and findings as they are committed.
// With quiet set only the final JSON is written to stdout.
func consoleObserver(quiet bool) engine.Observer {
	if quiet {
		return engine.ObserverFuncs{
			Progress: func(pct int, label string) {
				fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", pct, label)
			},
		}
	}
	return engine.ObserverFuncs{
		Progress: func(pct int, label string) {
			fmt.Printf("[%3d%%] %s\n", pct, label)
		},
		Finding: func(f engine.Finding) {
			fmt.Printf("       %s\n", f)
		},
	}
}

// humanOut is where text output goes. With --json it moves to stderr so
// that stdout holds only the result.
func humanOut() io.Writer {
	if scanJSON {
		return os.Stderr
	}
	return os.Stdout
}

// report prints the outcome of a finished scan and handles --baseline and
// --remediate.
func report(rt *runtime, res engine.Result) error {
	out := humanOut()
	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "\nScan %s finished: %s\n", res.ID, res.Summary())
	}

	if scanRemediate && len(res.Checks) > 0 {
		plans := rt.remediation.Plans(res.Platform, res.Checks)
		if len(plans) == 0 {
			fmt.Fprintln(out, "\nNo remediation needed.")
		}
		for _, p := range plans {
			fmt.Fprintf(out, "\n%s\n", p)
		}
	}

	if scanBaseline != "" {
		return baselineStep(out, res)
	}
	return nil
}

func baselineStep(out io.Writer, res engine.Result) error {
	if _, err := os.Stat(scanBaseline); errors.Is(err, os.ErrNotExist) {
		if err := engine.SaveBaseline(scanBaseline, res); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nBaseline saved to %s\n", scanBaseline)
		return nil
	}
	base, err := engine.LoadBaseline(scanBaseline)
	if err != nil {
		return err
	}
	diff := engine.CompareBaseline(base, res)
	fmt.Fprintf(out, "\n%s", diff.Report(scanBaseline))
	if diff.Worse() {
		return fmt.Errorf("posture regressed since baseline %s", base.ScanID)
	}
	return nil
}

// watchScans re-runs mode on every tick until interrupted, serving
// metrics and reloading the config file along the way.
func watchScans(parent context.Context, rt *runtime, mode engine.Mode) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	addr := scanMetricsAddr
	if addr == "" {
		addr = rt.cfg.Metrics.Addr
	}
	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: rt.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(humanOut(), "Serving metrics on http://%s/metrics\n", addr)
	}

	reloads := make(chan *config.Config, 1)
	if path, err := configPath(); err == nil {
		go func() {
			err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
				if err != nil {
					rt.logger.Warn("ignoring invalid config change", zap.Error(err))
					return
				}
				select {
				case <-reloads:
				default:
				}
				reloads <- cfg
			})
			if err != nil {
				rt.logger.Warn("config hot reload disabled", zap.Error(err))
			}
		}()
	}

	obs := consoleObserver(scanJSON)
	s, err := rt.scanner(rt.cfg, obs)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(scanWatch)
	defer ticker.Stop()

	fmt.Fprintf(humanOut(), "Watching: %s scan every %s (Ctrl+C stops a running scan, again to exit)\n", mode, scanWatch)
	w := &watchLoop{
		mode:    mode,
		signals: sigs,
		ticks:   ticker.C,
		reloads: reloads,
		rebuild: func(cfg *config.Config) (*engine.Scanner, error) {
			if err := rt.reconfigure(cfg); err != nil {
				return nil, err
			}
			return rt.scanner(cfg, obs)
		},
		report: func(res engine.Result) error { return report(rt, res) },
		out:    humanOut(),
		logger: rt.logger,
	}
	return w.run(ctx, s)
}
