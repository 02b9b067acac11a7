package ops

import (
	"context"
	"fmt"
	"os"

	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/lattice"
	"github.com/hpungsan/foldsat/internal/search"
	"github.com/hpungsan/foldsat/internal/sequence"
)

// Corpus selects the sequences a batch operation runs over.
type Corpus struct {
	Path   string // a sequence file or a directory of them
	Kind   string // all, real, random
	MinLen int
	MaxLen int // exclusive; 0 = unbounded
	Ignore []string
}

// load returns the corpus sequences and the files that failed to parse.
func (c Corpus) load() ([]*sequence.Sequence, []string, error) {
	if c.Path == "" {
		return nil, nil, errors.NewInvalidRequest("a sequence file or directory is required")
	}
	info, err := os.Stat(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewNotFound(c.Path)
		}
		return nil, nil, errors.NewInternal(err)
	}
	if !info.IsDir() {
		seq, err := sequence.Load(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return []*sequence.Sequence{seq}, nil, nil
	}

	kind, err := sequence.ParseKind(c.Kind)
	if err != nil {
		return nil, nil, err
	}
	seqs, bad, err := sequence.Discover(c.Path, sequence.Filter{
		Kind:   kind,
		MinLen: c.MinLen,
		MaxLen: c.MaxLen,
		Ignore: c.Ignore,
	})
	if err != nil {
		return nil, nil, err
	}
	skipped := make([]string, 0, len(bad))
	for _, e := range bad {
		skipped = append(skipped, e.Error())
	}
	return seqs, skipped, nil
}

// BenchInput contains parameters for the Bench operation.
type BenchInput struct {
	Corpus   Corpus
	Dims     []int    // default: [2]
	Variants []int    // default: [0]
	Solvers  []string // default: [config default_solver]
	Policies []string // default: every policy
	Repeats  int      // default: config repeats
	NoCache  bool
}

// BenchItem is one run of the batch.
type BenchItem struct {
	TrackedRun
	Sequence    string `json:"sequence"`
	Dims        int    `json:"dims"`
	Variant     int    `json:"variant"`
	Solver      string `json:"solver"`
	Policy      string `json:"policy"`
	Repeat      int    `json:"repeat"`
	MaxContacts int    `json:"max_contacts"`
	Queries     int    `json:"queries"`
	SolveNS     int64  `json:"solve_ns"`
	Error       string `json:"error,omitempty"`
}

// BenchOutput contains the result of the Bench operation.
type BenchOutput struct {
	Sequences int         `json:"sequences"`
	Runs      int         `json:"runs"`
	Failed    int         `json:"failed"`
	Skipped   []string    `json:"skipped,omitempty"`
	Items     []BenchItem `json:"items"`
}

// Bench runs every sequence × dimension × variant × solver × policy ×
// repeat combination and records each run. A run that ends in an oracle
// error is recorded as failed and the batch continues; any other error
// stops the batch.
func Bench(ctx context.Context, env *Env, input BenchInput) (*BenchOutput, error) {
	seqs, skipped, err := input.Corpus.load()
	if err != nil {
		return nil, err
	}
	geoms, err := geometries(input.Dims)
	if err != nil {
		return nil, err
	}
	kinds, err := policies(input.Policies)
	if err != nil {
		return nil, err
	}
	variants := input.Variants
	if len(variants) == 0 {
		variants = []int{0}
	}
	solvers := input.Solvers
	if len(solvers) == 0 {
		solvers = []string{env.Config.DefaultSolver}
	}
	repeats := input.Repeats
	if repeats <= 0 {
		repeats = max(env.Config.Repeats, 1)
	}

	engine := env.engine()
	t := newTracker(env)
	log := env.logger()

	out := &BenchOutput{Sequences: len(seqs), Skipped: skipped, Items: []BenchItem{}}
	for _, seq := range seqs {
		for _, g := range geoms {
			if lattice.UndersizedExtent(g, seq.Len()) {
				log.Warn("grid extent may be too small for the sequence", "sequence", seq.Name(), "dims", g.Dims())
			}
			for _, variant := range variants {
				for _, solver := range solvers {
					for _, kind := range kinds {
						for rep := 1; rep <= repeats; rep++ {
							if err := ctx.Err(); err != nil {
								return out, errors.NewInternal(fmt.Errorf("bench interrupted: %w", err))
							}
							req := search.Request{
								Sequence: seq,
								Geometry: g,
								Variant:  variant,
								UseCache: !input.NoCache,
								Solver:   solver,
								Policy:   kind,
							}
							item, err := benchOne(ctx, engine, t, req, rep)
							if err != nil {
								return out, err
							}
							out.Runs++
							if item.Error != "" {
								out.Failed++
							}
							out.Items = append(out.Items, item)
						}
					}
				}
			}
		}
	}
	return out, nil
}

func benchOne(ctx context.Context, engine *search.Engine, t *tracker, req search.Request, rep int) (BenchItem, error) {
	item := BenchItem{
		Sequence: req.Sequence.Name(),
		Dims:     req.Geometry.Dims(),
		Variant:  req.Variant,
		Solver:   req.Solver,
		Policy:   string(req.Policy),
		Repeat:   rep,
	}

	res, runErr := engine.Run(ctx, req)
	if res == nil {
		return item, runErr
	}
	if runErr != nil && !errors.Is(runErr, errors.ErrOracle) {
		return item, runErr
	}

	tr, err := t.track(ctx, req.Sequence, req.Geometry, res, runErr, req.UseCache)
	if err != nil {
		return item, err
	}
	item.TrackedRun = tr
	item.MaxContacts = res.MaxContacts
	item.Queries = res.Queries()
	item.SolveNS = res.TotalSolve.Nanoseconds()
	if runErr != nil {
		item.Error = runErr.Error()
	}
	return item, nil
}
