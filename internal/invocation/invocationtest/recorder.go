// Package invocationtest provides a recording Runner for tests.
package invocationtest

import (
	"context"
	"sync"

	"github.com/oshokin/extbuild/internal/invocation"
)

// Recorder is an invocation.Runner that records invocations instead of running them.
type Recorder struct {
	// Fail decides the exit code of a recorded invocation; nil means every invocation exits 0.
	Fail func(inv *invocation.Invocation) int
	// Stdout is returned by Output.
	Stdout []byte

	mu    sync.Mutex
	calls []*invocation.Invocation
}

// Run records inv and applies its success predicate to the exit code chosen by Fail.
func (r *Recorder) Run(_ context.Context, inv *invocation.Invocation) error {
	return r.record(inv)
}

// Output records inv and returns r.Stdout on success.
func (r *Recorder) Output(_ context.Context, inv *invocation.Invocation) ([]byte, error) {
	if err := r.record(inv); err != nil {
		return nil, err
	}

	return append([]byte(nil), r.Stdout...), nil
}

// Calls returns a copy of the recorded invocations in order.
func (r *Recorder) Calls() []*invocation.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*invocation.Invocation(nil), r.calls...)
}

// Commands returns the recorded argument vectors, program first.
func (r *Recorder) Commands() [][]string {
	calls := r.Calls()

	commands := make([][]string, 0, len(calls))
	for _, inv := range calls {
		commands = append(commands, inv.Command())
	}

	return commands
}

func (r *Recorder) record(inv *invocation.Invocation) error {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()

	code := 0
	if r.Fail != nil {
		code = r.Fail(inv)
	}

	if inv.Succeeded(code) {
		return nil
	}

	return &invocation.ExitError{
		Command: inv.String(),
		Dir:     inv.Dir,
		Code:    code,
	}
}
