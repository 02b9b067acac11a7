package ops

import (
	"context"

	"github.com/hpungsan/foldsat/internal/encode"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/search"
)

// SolveInput contains parameters for the Solve operation.
type SolveInput struct {
	Sequence      SequenceRef
	Dims          int // default: 2
	Variant       int
	CountEncoding string // default: config count_encoding
	Solver        string // default: config default_solver
	Policy        string // default: double-binary
	NoCache       bool
	Track         bool // record CSV rows and run store entries
	Repeats       int  // tracked runs only; default: config repeats
}

// SolveRun is one search run and where it was recorded.
type SolveRun struct {
	TrackedRun
	*search.Result
}

// SolveOutput contains the result of the Solve operation.
type SolveOutput struct {
	MaxContacts int        `json:"max_contacts"`
	Runs        []SolveRun `json:"runs"`
}

// Solve finds the maximum contact count of one sequence.
func Solve(ctx context.Context, env *Env, input SolveInput) (*SolveOutput, error) {
	seq, err := input.Sequence.Resolve()
	if err != nil {
		return nil, err
	}
	g, err := geometry(input.Dims)
	if err != nil {
		return nil, err
	}
	kind, err := search.ParseKind(input.Policy)
	if err != nil {
		return nil, err
	}
	if input.Repeats < 0 {
		return nil, errors.NewInvalidRequest("repeats must be non-negative")
	}
	if err := encode.CheckCountEncoding(input.CountEncoding); err != nil {
		return nil, err
	}

	repeats := 1
	if input.Track {
		repeats = input.Repeats
		if repeats == 0 {
			repeats = max(env.Config.Repeats, 1)
		}
	}

	req := search.Request{
		Sequence:      seq,
		Geometry:      g,
		Variant:       input.Variant,
		CountEncoding: input.CountEncoding,
		UseCache:      !input.NoCache,
		Solver:        env.solverName(input.Solver),
		Policy:        kind,
	}

	engine := env.engine()
	var t *tracker
	if input.Track {
		t = newTracker(env)
	}

	out := &SolveOutput{Runs: make([]SolveRun, 0, repeats)}
	for i := 0; i < repeats; i++ {
		res, runErr := engine.Run(ctx, req)
		if res == nil {
			return nil, runErr
		}
		run := SolveRun{Result: res}
		if t != nil {
			tr, err := t.track(ctx, seq, g, res, runErr, req.UseCache)
			if err != nil {
				return nil, err
			}
			run.TrackedRun = tr
		}
		if runErr != nil {
			return nil, runErr
		}
		out.Runs = append(out.Runs, run)
		out.MaxContacts = res.MaxContacts
	}
	return out, nil
}
