package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/gosec-posture/pkg/config"
	"github.com/user/gosec-posture/pkg/engine"
)

// watchLoop drives periodic scans. A signal during a scan stops that
// scan; a signal while idle ends the loop. A reloaded config replaces the
// scanner on the next tick that finds it idle.
type watchLoop struct {
	mode    engine.Mode
	signals <-chan os.Signal
	ticks   <-chan time.Time
	reloads <-chan *config.Config
	rebuild func(cfg *config.Config) (*engine.Scanner, error)
	report  func(res engine.Result) error
	out     io.Writer
	logger  *zap.Logger
}

func (w *watchLoop) run(ctx context.Context, s *engine.Scanner) error {
	results := make(chan engine.Result, 1)
	start := func() {
		if _, err := s.Start(ctx, w.mode); err != nil {
			w.logger.Error("scan did not start", zap.Error(err))
			return
		}
		cur := s
		go func() {
			res, err := cur.Wait(ctx)
			if err != nil {
				return
			}
			select {
			case results <- res:
			case <-ctx.Done():
			}
		}()
	}

	start()
	var pending *config.Config
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return nil
		case <-w.signals:
			if s.State().Phase == engine.PhaseRunning {
				s.Stop()
				continue
			}
			fmt.Fprintln(w.out, "\nStopped watching.")
			return nil
		case cfg := <-w.reloads:
			w.logger.Info("configuration reloaded, applying on next scan",
				zap.Uint64("risk_process_mb", cfg.Thresholds.RiskProcessMemoryMB),
				zap.Uint64("threat_process_mb", cfg.Thresholds.ThreatProcessMemoryMB))
			pending = cfg
		case res := <-results:
			if res.Phase == engine.PhaseCancelled {
				fmt.Fprintln(w.out, "Scan cancelled; waiting for the next tick.")
				continue
			}
			if err := w.report(res); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
			}
		case <-w.ticks:
			if s.State().Phase == engine.PhaseRunning {
				w.logger.Debug("previous scan still running, skipping tick")
				continue
			}
			if pending != nil {
				next, err := w.rebuild(pending)
				if err != nil {
					w.logger.Error("keeping previous configuration", zap.Error(err))
				} else {
					s = next
				}
				pending = nil
			}
			fmt.Fprintf(w.out, "\n--- %s ---\n", strings.ToUpper(string(w.mode)))
			start()
		}
	}
}
