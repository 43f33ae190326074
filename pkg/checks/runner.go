package checks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Output is what a probe command printed and how it exited. A non-zero
// exit is not an error: tools like systemctl report state that way.
type Output struct {
	Stdout   string
	ExitCode int
}

// Trimmed returns Stdout without surrounding whitespace.
func (o Output) Trimmed() string { return strings.TrimSpace(o.Stdout) }

// Runner executes host probe commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner runs probes as subprocesses, each under a timeout and behind
// a per-command circuit breaker so that a probe which keeps failing is not
// re-spawned on every periodic scan.
type ExecRunner struct {
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration

	logger   *zap.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewExecRunner(timeout time.Duration, failures uint32, cooldown time.Duration, logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if failures == 0 {
		failures = 3
	}
	return &ExecRunner{
		Timeout:         timeout,
		BreakerFailures: failures,
		BreakerCooldown: cooldown,
		logger:          logger,
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (r *ExecRunner) breaker(key string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	failures := r.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    key,
		Timeout: r.BreakerCooldown,
		// A scan being stopped says nothing about the probe.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Info("probe breaker state changed",
				zap.String("probe", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	r.breakers[key] = cb
	return cb
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	v, err := r.breaker(key).Execute(func() (interface{}, error) {
		return r.exec(ctx, name, args...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Output{}, fmt.Errorf("%s: probe suspended after repeated failures", name)
	}
	if err != nil {
		return Output{}, err
	}
	return v.(Output), nil
}

func (r *ExecRunner) exec(ctx context.Context, name string, args ...string) (Output, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running probe", zap.String("cmd", name), zap.Strings("args", args))
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Output{}, fmt.Errorf("%s timed out after %s", name, r.Timeout)
		}
		return Output{}, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out := stdout.String()
		if out == "" {
			out = stderr.String()
		}
		return Output{Stdout: out, ExitCode: exitErr.ExitCode()}, nil
	}
	if err != nil {
		return Output{}, err
	}
	return Output{Stdout: stdout.String()}, nil
}
