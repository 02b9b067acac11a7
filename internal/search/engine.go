package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hpungsan/foldsat/internal/dimacs"
	"github.com/hpungsan/foldsat/internal/encode"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/lattice"
	"github.com/hpungsan/foldsat/internal/oracle"
	"github.com/hpungsan/foldsat/internal/sequence"
)

// Encoder is the part of encode.Encoder the engine uses.
type Encoder interface {
	Query(seq *sequence.Sequence, objective int, g lattice.Geometry, variant int) encode.Query
	Encode(ctx context.Context, q encode.Query, useCache bool) (*encode.Handle, error)
}

// Oracle is the part of oracle.Oracle the engine uses.
type Oracle interface {
	Query(ctx context.Context, h *encode.Handle, solver string) (oracle.Outcome, error)
}

// Request describes one search run. CountEncoding overrides the encoder's
// counting rule file when set.
type Request struct {
	Sequence      *sequence.Sequence
	Geometry      lattice.Geometry
	Variant       int
	CountEncoding string
	UseCache      bool
	Solver        string
	Policy        Kind
}

// Query builds the encoder query for objective k.
func (r Request) Query(enc Encoder, k int) encode.Query {
	q := enc.Query(r.Sequence, k, r.Geometry, r.Variant)
	if r.CountEncoding != "" {
		q.CountEncoding = r.CountEncoding
	}
	return q
}

// Probe is one oracle call made during a run.
type Probe struct {
	Objective int            `json:"objective"`
	Verdict   oracle.Verdict `json:"verdict"`
	Solve     time.Duration  `json:"solve_ns"`
	Encode    time.Duration  `json:"encode_ns"`
	Cached    bool           `json:"cached"`
	Stats     dimacs.Stats   `json:"stats"`
}

// Result is the outcome of one run. MaxContacts is NoFeasible when
// objective 0 is infeasible.
type Result struct {
	Sequence      string        `json:"sequence"`
	Length        int           `json:"length"`
	Geometry      int           `json:"dims"`
	Variant       int           `json:"variant"`
	CountEncoding string        `json:"count_encoding,omitempty"`
	Solver        string        `json:"solver"`
	Policy        Kind          `json:"policy"`
	MaxContacts   int           `json:"max_contacts"`
	UpperBound    int           `json:"upper_bound"`
	TotalSolve    time.Duration `json:"total_solve_ns"`
	FeasibleSolve time.Duration `json:"feasible_solve_ns"`
	TotalEncode   time.Duration `json:"total_encode_ns"`
	Trace         []Probe       `json:"trace"`
}

// Queries returns the number of oracle calls made.
func (r *Result) Queries() int { return len(r.Trace) }

// StatsAt returns the formula size recorded for objective k, if it was probed.
func (r *Result) StatsAt(k int) (dimacs.Stats, bool) {
	for _, p := range r.Trace {
		if p.Objective == k {
			return p.Stats, true
		}
	}
	return dimacs.Stats{}, false
}

// Engine runs policies against an encoder and an oracle.
type Engine struct {
	enc    Encoder
	orc    Oracle
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(enc Encoder, orc Oracle, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{enc: enc, orc: orc, logger: logger}
}

// Run searches for the maximum feasible objective of req.
//
// When the upper bound is 0 the run makes no oracle calls. If the policy
// confirms nothing and never probed objective 0, a single probe at 0
// decides between 0 and NoFeasible. An Error verdict aborts the run with
// ORACLE_ERROR; the partial result is returned alongside any error.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Sequence == nil {
		return nil, errors.NewInvalidRequest("request has no sequence")
	}
	if !req.Geometry.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unsupported geometry %d", int(req.Geometry)))
	}
	policy, err := PolicyFor(req.Policy)
	if err != nil {
		return nil, err
	}

	upper := lattice.UpperBound(req.Sequence, req.Geometry)
	res := &Result{
		Sequence:      req.Sequence.Name(),
		Length:        req.Sequence.Len(),
		Geometry:      req.Geometry.Dims(),
		Variant:       req.Variant,
		CountEncoding: req.CountEncoding,
		Solver:        req.Solver,
		Policy:        req.Policy,
		UpperBound:    upper,
	}

	log := e.logger.With("sequence", res.Sequence, "dims", res.Geometry, "variant", req.Variant, "policy", req.Policy, "solver", req.Solver)
	log.Info("search started", "length", res.Length, "upper_bound", upper)

	if upper == 0 {
		res.MaxContacts = 0
		log.Info("search finished", "max_contacts", 0, "queries", 0)
		return res, nil
	}

	probedZero := false
	probe := func(ctx context.Context, k int) (bool, error) {
		if k < 0 || k > upper {
			return false, errors.NewInternal(fmt.Errorf("policy %s probed %d outside [0, %d]", req.Policy, k, upper))
		}
		if k == 0 {
			probedZero = true
		}
		return e.probe(ctx, log, req, res, k)
	}

	best, err := policy.Search(ctx, probe, upper)
	if err != nil {
		res.MaxContacts = best
		return res, err
	}

	if best < 1 && !probedZero {
		ok, err := probe(ctx, 0)
		if err != nil {
			res.MaxContacts = best
			return res, err
		}
		if ok {
			best = 0
		} else {
			best = NoFeasible
		}
	}

	res.MaxContacts = best
	log.Info("search finished",
		"max_contacts", best,
		"queries", res.Queries(),
		"solve", res.TotalSolve,
		"encode", res.TotalEncode,
	)
	return res, nil
}

func (e *Engine) probe(ctx context.Context, log *slog.Logger, req Request, res *Result, k int) (bool, error) {
	h, err := e.enc.Encode(ctx, req.Query(e.enc, k), req.UseCache)
	if err != nil {
		return false, err
	}
	res.TotalEncode += h.Duration

	out, err := e.orc.Query(ctx, h, req.Solver)
	if err != nil {
		return false, err
	}

	p := Probe{
		Objective: k,
		Verdict:   out.Verdict,
		Solve:     out.Duration,
		Encode:    h.Duration,
		Cached:    h.Cached,
		Stats:     h.Stats,
	}
	res.Trace = append(res.Trace, p)
	res.TotalSolve += out.Duration
	log.Info("probe", "objective", k, "verdict", out.Verdict, "solve", out.Duration, "cached", h.Cached)

	switch out.Verdict {
	case oracle.Feasible:
		res.FeasibleSolve += out.Duration
		return true, nil
	case oracle.Infeasible:
		return false, nil
	}

	solver := out.Solver
	if solver == "" {
		solver = req.Solver
	}
	oerr := errors.NewOracle(solver, k, out.Output)
	oerr.Details["sequence"] = res.Sequence
	oerr.Details["trace"] = append([]Probe(nil), res.Trace...)
	return false, oerr
}
