package checks

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type fakeReply struct {
	out Output
	err error
}

// fakeRunner answers probes from a table keyed by the full command line.
type fakeRunner struct {
	mu      sync.Mutex
	replies map[string]fakeReply
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: make(map[string]fakeReply)}
}

func (f *fakeRunner) on(cmdline, stdout string, exit int) *fakeRunner {
	f.replies[cmdline] = fakeReply{out: Output{Stdout: stdout, ExitCode: exit}}
	return f
}

func (f *fakeRunner) fail(cmdline string, err error) *fakeRunner {
	f.replies[cmdline] = fakeReply{err: err}
	return f
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (Output, error) {
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	r, ok := f.replies[key]
	if !ok {
		return Output{}, fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return r.out, r.err
}
