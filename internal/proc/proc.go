// Package proc is the single seam through which foldsat starts external
// programs: the constraint compiler and subprocess SAT solvers. Tests
// substitute a Mock.
package proc

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Result is what a finished process left behind.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Combined returns stdout followed by stderr.
func (r Result) Combined() string {
	if len(r.Stderr) == 0 {
		return string(r.Stdout)
	}
	return string(r.Stdout) + string(r.Stderr)
}

// Runner runs a command to completion.
//
// A non-zero exit status is not an error: it is reported in Result.ExitCode
// because SAT solvers use exit codes to carry their answer. err is non-nil
// only when the process could not be started or was killed because ctx
// ended; in the latter case it wraps ctx.Err().
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec runs real processes with os/exec.
type Exec struct{}

// NewExec returns a Runner backed by os/exec.
func NewExec() *Exec {
	return &Exec{}
}

// Run executes name with args and waits for it.
func (Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s killed: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	res.ExitCode = -1
	if stderr.Len() > 0 {
		return res, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return res, err
}

// Call records a single Mock invocation.
type Call struct {
	Name string
	Args []string
}

// Mock is a test double for Runner. RunFunc must be set before use.
type Mock struct {
	RunFunc func(ctx context.Context, name string, args ...string) (Result, error)

	mu    sync.Mutex
	calls []Call
}

// Run delegates to RunFunc and records the call.
func (m *Mock) Run(ctx context.Context, name string, args ...string) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Name: name, Args: append([]string(nil), args...)})
	m.mu.Unlock()

	if m.RunFunc == nil {
		panic("proc.Mock.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// Calls returns a copy of the recorded invocations.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
