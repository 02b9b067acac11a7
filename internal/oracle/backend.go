package oracle

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/crillab/gophersat/solver"
	"github.com/go-air/gini"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/proc"
)

// In-process backend names. Every other solver name runs a subprocess.
const (
	GophersatSolver = "gophersat"
	GiniSolver      = "gini"
)

// Run is what a backend reports for one formula: solver-style text and an
// exit code following the SAT competition convention (10 sat, 20 unsat).
type Run struct {
	Output   string
	ExitCode int
}

// Backend decides one DIMACS formula.
// A cancelled or expired ctx is reported by returning an error wrapping
// ctx.Err().
type Backend interface {
	Solve(ctx context.Context, formulaPath string) (Run, error)
}

// Exec runs an external solver binary with the formula path appended to its
// arguments.
type Exec struct {
	Solver config.SolverConfig
	Runner proc.Runner
}

func (e *Exec) Solve(ctx context.Context, formulaPath string) (Run, error) {
	args := append(append([]string(nil), e.Solver.Args...), formulaPath)
	res, err := e.Runner.Run(ctx, e.Solver.Binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return Run{Output: res.Combined(), ExitCode: -1}, err
		}
		return Run{}, errors.NewExternalToolFailure(e.Solver.Binary, args, err, res.Combined())
	}
	switch res.ExitCode {
	case 0, exitSat, exitUnsat:
	default:
		return Run{}, errors.NewExternalToolFailure(e.Solver.Binary, args,
			fmt.Errorf("exit status %d", res.ExitCode), res.Combined())
	}
	return Run{Output: res.Combined(), ExitCode: res.ExitCode}, nil
}

// Gophersat solves in-process with the gophersat CDCL solver.
type Gophersat struct{}

func (Gophersat) Solve(ctx context.Context, formulaPath string) (Run, error) {
	f, err := os.Open(formulaPath)
	if err != nil {
		return Run{}, errors.NewInternal(fmt.Errorf("open formula: %w", err))
	}
	pb, err := solver.ParseCNF(f)
	f.Close()
	if err != nil {
		return Run{Output: fmt.Sprintf("c parse error: %v\n", err)}, nil
	}

	// The solver has no cancellation hook; on expiry the goroutine is left to
	// finish on its own.
	done := make(chan solver.Status, 1)
	go func() { done <- solver.New(pb).Solve() }()

	select {
	case st := <-done:
		switch st {
		case solver.Sat:
			return Run{Output: "s SATISFIABLE\n", ExitCode: exitSat}, nil
		case solver.Unsat:
			return Run{Output: "s UNSATISFIABLE\n", ExitCode: exitUnsat}, nil
		default:
			return Run{Output: "s UNKNOWN\n"}, nil
		}
	case <-ctx.Done():
		return Run{ExitCode: -1}, fmt.Errorf("gophersat: %w", ctx.Err())
	}
}

// Gini solves in-process with the gini solver.
type Gini struct{}

func (Gini) Solve(ctx context.Context, formulaPath string) (Run, error) {
	f, err := os.Open(formulaPath)
	if err != nil {
		return Run{}, errors.NewInternal(fmt.Errorf("open formula: %w", err))
	}
	g, err := gini.NewDimacs(f)
	f.Close()
	if err != nil {
		return Run{Output: fmt.Sprintf("c parse error: %v\n", err)}, nil
	}

	var res int
	if deadline, ok := ctx.Deadline(); ok {
		// Try stops the solver when the duration runs out and returns 0.
		res = g.GoSolve().Try(time.Until(deadline))
		if res == 0 && !time.Now().Before(deadline) {
			return Run{ExitCode: -1}, fmt.Errorf("gini: %w", context.DeadlineExceeded)
		}
	} else {
		res = g.Solve()
	}

	switch res {
	case 1:
		return Run{Output: "s SATISFIABLE\n", ExitCode: exitSat}, nil
	case -1:
		return Run{Output: "s UNSATISFIABLE\n", ExitCode: exitUnsat}, nil
	}
	return Run{Output: "s UNKNOWN\n"}, nil
}
