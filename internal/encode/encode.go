// Package encode turns an objective query into a DIMACS formula: it renders
// the fact file, selects the rule files and runs the constraint compiler,
// reusing cached formulas when asked to.
package encode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/dimacs"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/lattice"
	"github.com/hpungsan/foldsat/internal/proc"
	"github.com/hpungsan/foldsat/internal/sequence"
)

// Handle points at the formula for one query.
type Handle struct {
	Query       Query
	FactPath    string
	FormulaPath string
	Cached      bool
	Duration    time.Duration // compile time; zero on a cache hit
	Stats       dimacs.Stats
	// StatsErr is set when the formula is empty or its header is unreadable.
	// Such a formula must not be handed to a solver.
	StatsErr error
}

// Usable reports whether the formula can be solved.
func (h *Handle) Usable() bool {
	return h.StatsErr == nil
}

// Encoder builds formulas with an external compiler.
type Encoder struct {
	compiler      string
	rulesDir      string
	countEncoding string
	store         CacheStore
	runner        proc.Runner
	logger        *slog.Logger
}

// New creates an Encoder from cfg.
func New(cfg *config.Config, store CacheStore, runner proc.Runner, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Encoder{
		compiler:      cfg.Compiler,
		rulesDir:      cfg.RulesDir,
		countEncoding: cfg.CountEncoding,
		store:         store,
		runner:        runner,
		logger:        logger,
	}
}

// Query builds a query using the encoder's counting rule file.
func (e *Encoder) Query(seq *sequence.Sequence, objective int, g lattice.Geometry, variant int) Query {
	return Query{
		Sequence:      seq,
		Objective:     objective,
		Geometry:      g,
		Variant:       variant,
		CountEncoding: e.countEncoding,
	}
}

// RuleFiles lists the rule files compiled for q, constraint rules first.
// Variant 0 has one file per geometry; later variants are geometry-agnostic.
func (e *Encoder) RuleFiles(q Query) []string {
	constraints := fmt.Sprintf("constraints_%dd_v0.bul", q.Geometry.Dims())
	if q.Variant > 0 {
		constraints = fmt.Sprintf("constraints_v%d.bul", q.Variant)
	}
	count := q.CountEncoding
	if count == "" {
		count = e.countEncoding
	}
	return []string{
		filepath.Join(e.rulesDir, constraints),
		filepath.Join(e.rulesDir, count),
	}
}

// RenderFacts returns the fact file for q. The goal is the number of
// adjacent H pairs plus the objective, since the rules count every
// lattice-adjacent H pair including backbone bonds.
func RenderFacts(q Query) string {
	seq := q.Sequence
	var b strings.Builder
	fmt.Fprintf(&b, "%% %s\n\n", seq)
	for i := 0; i < seq.Len(); i++ {
		label := 0
		if seq.IsH(i) {
			label = 1
		}
		fmt.Fprintf(&b, "#ground sequence[%d, %d].\n", i, label)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "#ground width[%d].\n", lattice.GridExtent(q.Geometry, seq.Len()))
	fmt.Fprintf(&b, "#ground goal[%d].\n", seq.AdjacentPairCount()+q.Objective)
	fmt.Fprintf(&b, "#ground dim[0 .. %d].\n", q.Geometry.Dims()-1)
	return b.String()
}

// Encode produces the formula for q. With useCache an existing non-empty
// formula is returned without running the compiler.
func (e *Encoder) Encode(ctx context.Context, q Query, useCache bool) (*Handle, error) {
	if q.CountEncoding == "" {
		q.CountEncoding = e.countEncoding
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := q.Key()
	h := &Handle{
		Query:       q,
		FactPath:    e.store.FactPath(key),
		FormulaPath: e.store.FormulaPath(key),
	}

	if useCache {
		if path, ok := e.store.Lookup(key); ok {
			h.FormulaPath = path
			h.Cached = true
			h.Stats, h.StatsErr = dimacs.ReadHeader(path)
			e.logger.Debug("formula cache hit", "path", path, "objective", q.Objective)
			return h, nil
		}
	}

	rules := e.RuleFiles(q)
	args := append([]string{"--output", "dimacs"}, rules...)
	args = append(args, h.FactPath)
	// A missing rule file is a broken tool chain, reported with the command
	// that would have run.
	for _, r := range rules {
		if _, err := os.Stat(r); err != nil {
			return nil, errors.NewExternalToolFailure(e.compiler, args,
				fmt.Errorf("rule file %s: %w", r, err), "")
		}
	}

	start := time.Now()
	if err := writeFile(h.FactPath, []byte(RenderFacts(q))); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("write fact file: %w", err))
	}

	res, err := e.runner.Run(ctx, e.compiler, args...)
	if err != nil {
		return nil, errors.NewExternalToolFailure(e.compiler, args, err, res.Combined())
	}
	if res.ExitCode != 0 {
		return nil, errors.NewExternalToolFailure(e.compiler, args,
			fmt.Errorf("exit status %d", res.ExitCode), string(res.Stderr))
	}

	if err := writeFile(h.FormulaPath, res.Stdout); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("write formula: %w", err))
	}
	h.Duration = time.Since(start)

	if st, err := dimacs.ParseHeader(bytes.NewReader(res.Stdout)); err != nil {
		h.StatsErr = errors.NewFormat(h.FormulaPath, err.Error())
	} else {
		h.Stats = st
	}

	e.logger.Debug("formula compiled",
		"path", h.FormulaPath,
		"objective", q.Objective,
		"variables", h.Stats.Variables,
		"clauses", h.Stats.Clauses,
		"duration", h.Duration,
	)
	return h, nil
}

// writeFile replaces path atomically; a cached formula is never partial.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
