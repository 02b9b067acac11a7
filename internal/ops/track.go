package ops

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/hpungsan/foldsat/internal/db"
	"github.com/hpungsan/foldsat/internal/dimacs"
	"github.com/hpungsan/foldsat/internal/encode"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/lattice"
	"github.com/hpungsan/foldsat/internal/record"
	"github.com/hpungsan/foldsat/internal/search"
	"github.com/hpungsan/foldsat/internal/sequence"
)

// TrackedRun identifies where a run was recorded.
type TrackedRun struct {
	RunID   string `json:"run_id,omitempty"`
	CSVPath string `json:"csv_path,omitempty"`
}

// tracker records finished runs to CSV and, when a database is open, to
// the run store. One tracker spans one command so each CSV target is
// truncated once.
type tracker struct {
	env *Env
	rec *record.Recorder
	enc *encode.Encoder
}

func newTracker(env *Env) *tracker {
	return &tracker{
		env: env,
		rec: record.New(env.Config.ResultsDir),
		enc: env.encoder(),
	}
}

// track records res. runErr is the error the engine returned with it;
// failed runs go to the run store with their error code but not to CSV.
func (t *tracker) track(ctx context.Context, seq *sequence.Sequence, g lattice.Geometry, res *search.Result, runErr error, useCache bool) (TrackedRun, error) {
	var out TrackedRun
	var stats *dimacs.Stats

	if runErr == nil {
		st, err := t.finalStats(ctx, seq, g, res, useCache)
		if err != nil {
			return out, err
		}
		stats = &st
		if err := ensureDir(t.rec.Dir); err != nil {
			return out, err
		}
		m := record.MetaOf(res)
		if err := t.rec.Record(m, res, st); err != nil {
			return out, err
		}
		out.CSVPath = t.rec.Path(m)
	}

	if t.env.DB == nil {
		return out, nil
	}
	id, err := generateULID()
	if err != nil {
		return out, errors.NewInternal(err)
	}
	countEncoding := res.CountEncoding
	if countEncoding == "" {
		countEncoding = t.env.Config.CountEncoding
	}
	run := toDBRun(id, seq, countEncoding, res, stats, errorCode(runErr))
	if err := db.InsertRun(t.env.DB, run); err != nil {
		return out, err
	}
	out.RunID = id
	return out, nil
}

// finalStats returns the formula size at the reported maximum, compiling it
// only when the search never probed that objective.
func (t *tracker) finalStats(ctx context.Context, seq *sequence.Sequence, g lattice.Geometry, res *search.Result, useCache bool) (dimacs.Stats, error) {
	k := max(res.MaxContacts, 0)
	if st, ok := res.StatsAt(k); ok {
		return st, nil
	}
	q := t.enc.Query(seq, k, g, res.Variant)
	if res.CountEncoding != "" {
		q.CountEncoding = res.CountEncoding
	}
	h, err := t.enc.Encode(ctx, q, useCache)
	if err != nil {
		return dimacs.Stats{}, err
	}
	if !h.Usable() {
		return dimacs.Stats{}, h.StatsErr
	}
	return h.Stats, nil
}

func toDBRun(id string, seq *sequence.Sequence, countEncoding string, res *search.Result, stats *dimacs.Stats, code string) *db.Run {
	r := &db.Run{
		ID:              id,
		Sequence:        res.Sequence,
		Labels:          seq.String(),
		Length:          res.Length,
		Dims:            res.Geometry,
		Variant:         res.Variant,
		CountEncoding:   countEncoding,
		Solver:          res.Solver,
		Policy:          string(res.Policy),
		MaxContacts:     res.MaxContacts,
		UpperBound:      res.UpperBound,
		Queries:         res.Queries(),
		TotalSolveNS:    res.TotalSolve.Nanoseconds(),
		FeasibleSolveNS: res.FeasibleSolve.Nanoseconds(),
		TotalEncodeNS:   res.TotalEncode.Nanoseconds(),
		ErrorCode:       code,
		CreatedAt:       time.Now().Unix(),
		Probes:          make([]db.Probe, 0, len(res.Trace)),
	}
	if stats != nil {
		v, c := stats.Variables, stats.Clauses
		r.Variables, r.Clauses = &v, &c
	}
	for _, p := range res.Trace {
		r.Probes = append(r.Probes, db.Probe{
			Objective: p.Objective,
			Verdict:   p.Verdict.String(),
			SolveNS:   p.Solve.Nanoseconds(),
			EncodeNS:  p.Encode.Nanoseconds(),
			Cached:    p.Cached,
			Variables: p.Stats.Variables,
			Clauses:   p.Stats.Clauses,
		})
	}
	return r
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var fe *errors.FoldError
	if stderrors.As(err, &fe) {
		return string(fe.Code)
	}
	return string(errors.ErrInternal)
}
