package ops

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hpungsan/foldsat/internal/dimacs"
	"github.com/hpungsan/foldsat/internal/encode"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/lattice"
	"github.com/hpungsan/foldsat/internal/search"
	"github.com/hpungsan/foldsat/internal/sequence"
)

// Comparison axes.
const (
	CompareByPolicy        = "policy"
	CompareByVariant       = "variant"
	CompareByCountEncoding = "count-encoding"
)

var (
	defaultCompareVariants       = []int{0, 1}
	defaultCompareCountEncodings = []string{"cc_a.bul", "counter.bul"}
)

// statsObjective is where formula sizes are compared across encodings.
const statsObjective = 1

// CompareInput contains parameters for the Compare operation.
//
// By picks what varies. Variants and CountEncodings list the settings
// compared in their own mode and hold at most one fixed value otherwise.
// Policies lists the policies checked against linear in policy mode and
// the single policy run in the other modes.
type CompareInput struct {
	Corpus         Corpus
	Dims           []int  // default: [2]
	By             string // default: policy
	Variants       []int  // variant mode default: [0 1]; otherwise default 0
	CountEncodings []string
	Solver         string // default: config default_solver
	Policies       []string
	NoCache        bool
}

// CompareItem is the comparison of one sequence in one geometry. Maps are
// keyed by setting label. Formulas holds the formula size at objective 1
// and is only filled when encodings are compared.
type CompareItem struct {
	Sequence      string                  `json:"sequence"`
	Dims          int                     `json:"dims"`
	Baseline      int                     `json:"baseline"`
	Consistent    bool                    `json:"consistent"`
	Contacts      map[string]int          `json:"contacts"`
	Queries       map[string]int          `json:"queries"`
	SolveNS       map[string]int64        `json:"solve_ns"`
	Formulas      map[string]dimacs.Stats `json:"formulas,omitempty"`
	Disagreements []string                `json:"disagreements,omitempty"`
}

// SettingSummary aggregates one setting over every compared sequence.
type SettingSummary struct {
	Setting      string `json:"setting"`
	Runs         int    `json:"runs"`
	Queries      int    `json:"queries"`
	TotalSolveNS int64  `json:"total_solve_ns"`
	MeanSolveNS  int64  `json:"mean_solve_ns"`
}

// SettingDelta is the mean difference between a setting and the baseline
// setting. Variable and clause means cover the Formulas sequences where
// both sizes were measured.
type SettingDelta struct {
	Setting       string  `json:"setting"`
	Sequences     int     `json:"sequences"`
	SameContacts  int     `json:"same_contacts"`
	MeanSolveNS   float64 `json:"mean_solve_delta_ns"`
	Formulas      int     `json:"formulas"`
	MeanVariables float64 `json:"mean_variables_delta"`
	MeanClauses   float64 `json:"mean_clauses_delta"`
}

// CompareOutput contains the result of the Compare operation.
type CompareOutput struct {
	By           string           `json:"by"`
	Baseline     string           `json:"baseline"`
	Items        []CompareItem    `json:"items"`
	Settings     []SettingSummary `json:"settings"`
	Deltas       []SettingDelta   `json:"deltas"`
	Inconsistent int              `json:"inconsistent"`
	Skipped      []string         `json:"skipped,omitempty"`
}

// setting is one compared configuration of a search request.
type setting struct {
	label string
	apply func(*search.Request)
}

// comparePlan is a validated CompareInput.
type comparePlan struct {
	by       string
	base     search.Request
	settings []setting // baseline first
	kinds    []search.Kind
}

// Compare runs each sequence under several settings and checks that they
// reach the same maximum.
//
// In policy mode every policy is checked against the linear scan;
// disagreement means feasibility is not monotone in the objective for that
// sequence. In variant and count-encoding mode one policy runs under each
// constraint variant or counting rule file, and the first setting is the
// baseline; the formula size at objective 1 is recorded for each.
func Compare(ctx context.Context, env *Env, input CompareInput) (*CompareOutput, error) {
	plan, err := input.plan(env)
	if err != nil {
		return nil, err
	}
	seqs, skipped, err := input.Corpus.load()
	if err != nil {
		return nil, err
	}
	geoms, err := geometries(input.Dims)
	if err != nil {
		return nil, err
	}

	engine := env.engine()
	enc := env.encoder()
	out := &CompareOutput{
		By:       plan.by,
		Baseline: plan.settings[0].label,
		Items:    []CompareItem{},
		Skipped:  skipped,
	}

	for _, seq := range seqs {
		for _, g := range geoms {
			var item CompareItem
			if plan.by == CompareByPolicy {
				item, err = comparePolicies(ctx, engine, plan, seq, g)
			} else {
				item, err = compareEncodings(ctx, engine, enc, plan, seq, g)
			}
			if err != nil {
				return nil, err
			}
			if !item.Consistent {
				out.Inconsistent++
				env.logger().Warn(disagreementMessage(plan.by),
					"sequence", item.Sequence, "dims", item.Dims, "disagreements", item.Disagreements)
			}
			out.Items = append(out.Items, item)
		}
	}

	out.Settings = summarize(out.Items)
	out.Deltas = deltas(out.Items, plan.settings)
	return out, nil
}

func (input CompareInput) plan(env *Env) (*comparePlan, error) {
	by := strings.TrimSpace(input.By)
	if by == "" {
		by = CompareByPolicy
	}

	p := &comparePlan{
		by: by,
		base: search.Request{
			UseCache: !input.NoCache,
			Solver:   env.solverName(input.Solver),
		},
	}
	for _, ce := range input.CountEncodings {
		if err := encode.CheckCountEncoding(ce); err != nil {
			return nil, err
		}
	}
	for _, v := range input.Variants {
		if v < 0 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("variant must be >= 0 (got %d)", v))
		}
	}

	switch by {
	case CompareByPolicy:
		if err := p.fixVariant(input.Variants); err != nil {
			return nil, err
		}
		if err := p.fixCountEncoding(input.CountEncodings); err != nil {
			return nil, err
		}
		kinds, err := policies(input.Policies)
		if err != nil {
			return nil, err
		}
		p.kinds = kinds
		p.settings = []setting{{label: string(search.KindLinear)}}
		for _, k := range kinds {
			if k != search.KindLinear {
				p.settings = append(p.settings, setting{label: string(k)})
			}
		}
		return p, nil

	case CompareByVariant:
		if err := p.fixCountEncoding(input.CountEncodings); err != nil {
			return nil, err
		}
		variants := dedupe(input.Variants)
		if len(variants) == 0 {
			variants = defaultCompareVariants
		}
		if len(variants) < 2 {
			return nil, errors.NewInvalidRequest("comparing variants needs at least two")
		}
		for _, v := range variants {
			p.settings = append(p.settings, setting{
				label: fmt.Sprintf("v%d", v),
				apply: func(r *search.Request) { r.Variant = v },
			})
		}

	case CompareByCountEncoding:
		if err := p.fixVariant(input.Variants); err != nil {
			return nil, err
		}
		names := dedupe(input.CountEncodings)
		if len(names) == 0 {
			names = defaultCompareCountEncodings
		}
		if len(names) < 2 {
			return nil, errors.NewInvalidRequest("comparing count encodings needs at least two")
		}
		for _, name := range names {
			p.settings = append(p.settings, setting{
				label: name,
				apply: func(r *search.Request) { r.CountEncoding = name },
			})
		}

	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf(
			"unknown comparison %q (want %s, %s or %s)", input.By, CompareByPolicy, CompareByVariant, CompareByCountEncoding))
	}

	kind := search.KindLinear
	switch len(input.Policies) {
	case 0:
	case 1:
		k, err := search.ParseKind(input.Policies[0])
		if err != nil {
			return nil, err
		}
		kind = k
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("comparing by %s runs one policy (got %d)", by, len(input.Policies)))
	}
	p.base.Policy = kind
	p.kinds = []search.Kind{kind}
	return p, nil
}

func (p *comparePlan) fixVariant(variants []int) error {
	if len(variants) > 1 {
		return errors.NewInvalidRequest(fmt.Sprintf("comparing by %s takes one variant (got %d)", p.by, len(variants)))
	}
	if len(variants) == 1 {
		p.base.Variant = variants[0]
	}
	return nil
}

func (p *comparePlan) fixCountEncoding(names []string) error {
	if len(names) > 1 {
		return errors.NewInvalidRequest(fmt.Sprintf("comparing by %s takes one count encoding (got %d)", p.by, len(names)))
	}
	if len(names) == 1 {
		p.base.CountEncoding = names[0]
	}
	return nil
}

func comparePolicies(ctx context.Context, engine *search.Engine, plan *comparePlan, seq *sequence.Sequence, g lattice.Geometry) (CompareItem, error) {
	req := plan.base
	req.Sequence = seq
	req.Geometry = g
	rep, err := search.CrossCheck(ctx, engine, req, plan.kinds)
	if err != nil {
		return CompareItem{}, err
	}

	item := newCompareItem(seq, g, len(rep.Results))
	item.Baseline = rep.Baseline
	item.Consistent = rep.Consistent()
	for kind, res := range rep.Results {
		item.add(string(kind), res)
	}
	for _, k := range rep.Disagreements {
		item.Disagreements = append(item.Disagreements, string(k))
	}
	return item, nil
}

func compareEncodings(ctx context.Context, engine *search.Engine, enc *encode.Encoder, plan *comparePlan, seq *sequence.Sequence, g lattice.Geometry) (CompareItem, error) {
	item := newCompareItem(seq, g, len(plan.settings))
	item.Formulas = make(map[string]dimacs.Stats, len(plan.settings))
	item.Consistent = true

	for i, s := range plan.settings {
		req := plan.base
		req.Sequence = seq
		req.Geometry = g
		s.apply(&req)

		res, err := engine.Run(ctx, req)
		if err != nil {
			return CompareItem{}, err
		}
		item.add(s.label, res)

		st, ok := res.StatsAt(statsObjective)
		if !ok {
			h, err := enc.Encode(ctx, req.Query(enc, statsObjective), req.UseCache)
			if err != nil {
				return CompareItem{}, err
			}
			st, ok = h.Stats, h.Usable()
		}
		if ok {
			item.Formulas[s.label] = st
		}

		if i == 0 {
			item.Baseline = res.MaxContacts
		} else if res.MaxContacts != item.Baseline {
			item.Consistent = false
			item.Disagreements = append(item.Disagreements, s.label)
		}
	}
	return item, nil
}

func newCompareItem(seq *sequence.Sequence, g lattice.Geometry, n int) CompareItem {
	return CompareItem{
		Sequence: seq.Name(),
		Dims:     g.Dims(),
		Contacts: make(map[string]int, n),
		Queries:  make(map[string]int, n),
		SolveNS:  make(map[string]int64, n),
	}
}

func (item *CompareItem) add(label string, res *search.Result) {
	item.Contacts[label] = res.MaxContacts
	item.Queries[label] = res.Queries()
	item.SolveNS[label] = res.TotalSolve.Nanoseconds()
}

func disagreementMessage(by string) string {
	if by == CompareByPolicy {
		return "policies disagree; feasibility may not be monotone"
	}
	return "encodings disagree on max contacts"
}

// summarize totals each setting, fastest mean solve time first.
func summarize(items []CompareItem) []SettingSummary {
	totals := make(map[string]*SettingSummary)
	for _, item := range items {
		for label, ns := range item.SolveNS {
			s, ok := totals[label]
			if !ok {
				s = &SettingSummary{Setting: label}
				totals[label] = s
			}
			s.Runs++
			s.Queries += item.Queries[label]
			s.TotalSolveNS += ns
		}
	}

	out := make([]SettingSummary, 0, len(totals))
	for _, s := range totals {
		s.MeanSolveNS = s.TotalSolveNS / int64(s.Runs)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MeanSolveNS != b.MeanSolveNS {
			return a.MeanSolveNS < b.MeanSolveNS
		}
		return a.Setting < b.Setting
	})
	return out
}

// deltas compares every non-baseline setting with settings[0], in setting
// order.
func deltas(items []CompareItem, settings []setting) []SettingDelta {
	base := settings[0].label
	out := make([]SettingDelta, 0, len(settings)-1)
	for _, s := range settings[1:] {
		d := SettingDelta{Setting: s.label}
		var solve, vars, clauses int64
		for _, item := range items {
			c, ok := item.Contacts[s.label]
			if !ok {
				continue
			}
			d.Sequences++
			if c == item.Contacts[base] {
				d.SameContacts++
			}
			solve += item.SolveNS[s.label] - item.SolveNS[base]

			a, okA := item.Formulas[base]
			b, okB := item.Formulas[s.label]
			if okA && okB {
				d.Formulas++
				vars += int64(b.Variables - a.Variables)
				clauses += int64(b.Clauses - a.Clauses)
			}
		}
		if d.Sequences > 0 {
			d.MeanSolveNS = float64(solve) / float64(d.Sequences)
		}
		if d.Formulas > 0 {
			d.MeanVariables = float64(vars) / float64(d.Formulas)
			d.MeanClauses = float64(clauses) / float64(d.Formulas)
		}
		out = append(out, d)
	}
	return out
}

func dedupe[T comparable](xs []T) []T {
	seen := make(map[T]bool, len(xs))
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
