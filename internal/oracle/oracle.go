// Package oracle decides formulas: it runs a SAT solver on an encoded query
// and classifies the answer as feasible, infeasible or error.
package oracle

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/encode"
	"github.com/hpungsan/foldsat/internal/proc"
)

// Outcome is the classified result of one solver call.
type Outcome struct {
	Verdict  Verdict       `json:"verdict"`
	Duration time.Duration `json:"duration"` // solver wall-clock only
	Output   string        `json:"-"`
	Solver   string        `json:"solver"`
}

// Oracle dispatches formulas to solver backends by name.
type Oracle struct {
	cfg     *config.Config
	runner  proc.Runner
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Oracle. Subprocess solvers are started through runner.
func New(cfg *config.Config, runner proc.Runner, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Oracle{
		cfg:     cfg,
		runner:  runner,
		timeout: cfg.SolverTimeout(),
		logger:  logger,
	}
}

// WithTimeout returns a copy of o with a different per-call timeout.
// Zero disables the timeout.
func (o *Oracle) WithTimeout(d time.Duration) *Oracle {
	c := *o
	c.timeout = d
	return &c
}

// Backend returns the backend for a solver name.
func (o *Oracle) Backend(name string) Backend {
	switch name {
	case GophersatSolver:
		return Gophersat{}
	case GiniSolver:
		return Gini{}
	}
	return &Exec{Solver: o.cfg.Solver(name), Runner: o.runner}
}

// Query decides the formula behind h with the named solver.
//
// Unusable formulas and expired solver timeouts yield an Error verdict with
// a nil error; a solver that cannot be run returns EXTERNAL_TOOL_FAILURE.
// Solvers are never retried.
func (o *Oracle) Query(ctx context.Context, h *encode.Handle, solverName string) (Outcome, error) {
	if solverName == "" {
		solverName = o.cfg.DefaultSolver
	}
	out := Outcome{Solver: solverName}

	if !h.Usable() {
		out.Verdict = Error
		out.Output = h.StatsErr.Error()
		return out, nil
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	run, err := o.Backend(solverName).Solve(ctx, h.FormulaPath)
	out.Duration = time.Since(start)
	out.Output = run.Output

	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			out.Verdict = Error
			out.Output = fmt.Sprintf("solver timed out after %s\n%s", o.timeout, run.Output)
			o.logger.Warn("solver timeout", "solver", solverName, "formula", h.FormulaPath, "timeout", o.timeout)
			return out, nil
		}
		return out, err
	}

	out.Verdict = ParseVerdict(run.Output)
	if out.Verdict == Error {
		// Some solvers print nothing in quiet mode and answer by exit code.
		out.Verdict = verdictFromExit(run.ExitCode)
	}

	o.logger.Debug("solver finished",
		"solver", solverName,
		"formula", h.FormulaPath,
		"verdict", out.Verdict,
		"duration", out.Duration,
		"output", run.Output,
	)
	return out, nil
}
