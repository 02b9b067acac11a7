package encode

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/lattice"
	"github.com/hpungsan/foldsat/internal/proc"
	"github.com/hpungsan/foldsat/internal/sequence"
)

type fixture struct {
	cfg    *config.Config
	store  *FileStore
	runner *proc.Mock
	enc    *Encoder
}

// newFixture lays out a rules directory and a compiler stub that prints
// formula for every invocation.
func newFixture(t *testing.T, formula string) *fixture {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.RulesDir = filepath.Join(root, "bule")
	cfg.ModelsDir = filepath.Join(root, "models")
	require.NoError(t, os.MkdirAll(cfg.RulesDir, 0755))
	for _, name := range []string{"constraints_2d_v0.bul", "constraints_3d_v0.bul", "constraints_v1.bul", "cc_a.bul", "counter.bul"} {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.RulesDir, name), []byte("% rules\n"), 0644))
	}

	runner := &proc.Mock{RunFunc: func(ctx context.Context, name string, args ...string) (proc.Result, error) {
		return proc.Result{Stdout: []byte(formula)}, nil
	}}
	store := NewFileStore(cfg.ModelsDir)
	return &fixture{
		cfg:    cfg,
		store:  store,
		runner: runner,
		enc:    New(cfg, store, runner, nil),
	}
}

func mustSeq(t *testing.T, name, labels string) *sequence.Sequence {
	t.Helper()
	s, err := sequence.Parse(filepath.Join("input", name), labels)
	require.NoError(t, err)
	return s
}

func TestRenderFacts(t *testing.T) {
	s := mustSeq(t, "demo", "1001101")
	q := Query{Sequence: s, Objective: 2, Geometry: lattice.Dim2, Variant: 1}

	want := strings.Join([]string{
		"% 1001101",
		"",
		"#ground sequence[0, 1].",
		"#ground sequence[1, 0].",
		"#ground sequence[2, 0].",
		"#ground sequence[3, 1].",
		"#ground sequence[4, 1].",
		"#ground sequence[5, 0].",
		"#ground sequence[6, 1].",
		"",
		"#ground width[7].",
		"#ground goal[3].",
		"#ground dim[0 .. 1].",
		"",
	}, "\n")
	require.Equal(t, want, RenderFacts(q))
}

func TestRenderFacts_3D(t *testing.T) {
	s := mustSeq(t, "demo", "11")
	facts := RenderFacts(Query{Sequence: s, Objective: 0, Geometry: lattice.Dim3})
	require.Contains(t, facts, "#ground width[2].\n")
	require.Contains(t, facts, "#ground goal[1].\n")
	require.Contains(t, facts, "#ground dim[0 .. 2].\n")
}

func TestRuleFiles(t *testing.T) {
	f := newFixture(t, "p cnf 1 1\n1 0\n")
	s := mustSeq(t, "demo", "1001")

	v0 := f.enc.RuleFiles(f.enc.Query(s, 1, lattice.Dim3, 0))
	require.Equal(t, []string{
		filepath.Join(f.cfg.RulesDir, "constraints_3d_v0.bul"),
		filepath.Join(f.cfg.RulesDir, "cc_a.bul"),
	}, v0)

	q := f.enc.Query(s, 1, lattice.Dim2, 1)
	q.CountEncoding = "counter.bul"
	require.Equal(t, []string{
		filepath.Join(f.cfg.RulesDir, "constraints_v1.bul"),
		filepath.Join(f.cfg.RulesDir, "counter.bul"),
	}, f.enc.RuleFiles(q))
}

func TestEncode_CompilesAndReadsStats(t *testing.T) {
	f := newFixture(t, "p cnf 120 450\n1 0\n")
	s := mustSeq(t, "demo", "1001101")

	h, err := f.enc.Encode(context.Background(), f.enc.Query(s, 2, lattice.Dim2, 1), false)
	require.NoError(t, err)
	require.True(t, h.Usable())
	require.False(t, h.Cached)
	require.Equal(t, 120, h.Stats.Variables)
	require.Equal(t, 450, h.Stats.Clauses)

	data, err := os.ReadFile(h.FormulaPath)
	require.NoError(t, err)
	require.Equal(t, "p cnf 120 450\n1 0\n", string(data))

	facts, err := os.ReadFile(h.FactPath)
	require.NoError(t, err)
	require.Contains(t, string(facts), "#ground goal[3].")

	calls := f.runner.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "bule2", calls[0].Name)
	require.Equal(t, []string{
		"--output", "dimacs",
		filepath.Join(f.cfg.RulesDir, "constraints_v1.bul"),
		filepath.Join(f.cfg.RulesDir, "cc_a.bul"),
		h.FactPath,
	}, calls[0].Args)

	require.True(t, strings.HasPrefix(filepath.Base(h.FormulaPath), "demo_2d_v1_2c_"))
	require.Equal(t, filepath.Join(f.cfg.ModelsDir, "cnf"), filepath.Dir(h.FormulaPath))
	require.Equal(t, filepath.Join(f.cfg.ModelsDir, "bul"), filepath.Dir(h.FactPath))
}

func TestEncode_CacheIdempotent(t *testing.T) {
	f := newFixture(t, "p cnf 5 7\n1 0\n")
	s := mustSeq(t, "demo", "110011")
	q := f.enc.Query(s, 1, lattice.Dim2, 1)

	first, err := f.enc.Encode(context.Background(), q, true)
	require.NoError(t, err)
	require.False(t, first.Cached)
	before, err := os.ReadFile(first.FormulaPath)
	require.NoError(t, err)

	second, err := f.enc.Encode(context.Background(), q, true)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Zero(t, second.Duration)
	require.Equal(t, first.FormulaPath, second.FormulaPath)
	require.Equal(t, first.Stats, second.Stats)

	after, err := os.ReadFile(second.FormulaPath)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Len(t, f.runner.Calls(), 1, "compiler must not run on a cache hit")

	// Without the cache the compiler runs again and the result is identical.
	third, err := f.enc.Encode(context.Background(), q, false)
	require.NoError(t, err)
	require.False(t, third.Cached)
	require.Equal(t, first.Stats, third.Stats)
	require.Len(t, f.runner.Calls(), 2)
}

func TestEncode_DistinctKeysDistinctFiles(t *testing.T) {
	f := newFixture(t, "p cnf 1 1\n1 0\n")
	s := mustSeq(t, "demo", "1001101")

	a, err := f.enc.Encode(context.Background(), f.enc.Query(s, 1, lattice.Dim2, 1), true)
	require.NoError(t, err)
	b, err := f.enc.Encode(context.Background(), f.enc.Query(s, 2, lattice.Dim2, 1), true)
	require.NoError(t, err)
	c, err := f.enc.Encode(context.Background(), f.enc.Query(s, 1, lattice.Dim3, 1), true)
	require.NoError(t, err)

	require.NotEqual(t, a.FormulaPath, b.FormulaPath)
	require.NotEqual(t, a.FormulaPath, c.FormulaPath)
	require.Len(t, f.runner.Calls(), 3)
}

func TestEncode_CountEncodingOverride(t *testing.T) {
	f := newFixture(t, "p cnf 3 4\n1 0\n")
	s := mustSeq(t, "demo", "1001101")

	q := f.enc.Query(s, 1, lattice.Dim2, 1)
	def, err := f.enc.Encode(context.Background(), q, true)
	require.NoError(t, err)

	q.CountEncoding = "counter.bul"
	over, err := f.enc.Encode(context.Background(), q, true)
	require.NoError(t, err)
	require.False(t, over.Cached, "a different counting rule must not reuse the cached formula")
	require.NotEqual(t, def.FormulaPath, over.FormulaPath)
	require.Equal(t, "counter.bul", over.Query.CountEncoding)

	calls := f.runner.Calls()
	require.Len(t, calls, 2)
	require.Contains(t, calls[0].Args, filepath.Join(f.cfg.RulesDir, "cc_a.bul"))
	require.Contains(t, calls[1].Args, filepath.Join(f.cfg.RulesDir, "counter.bul"))

	for _, bad := range []string{"../cc_a.bul", "bule/counter.bul", `..\counter.bul`, ".."} {
		q.CountEncoding = bad
		_, err := f.enc.Encode(context.Background(), q, false)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), bad)
	}
	require.Len(t, f.runner.Calls(), 2)
}

func TestEncode_EmptyFormulaFlagged(t *testing.T) {
	f := newFixture(t, "")
	s := mustSeq(t, "demo", "1001")

	h, err := f.enc.Encode(context.Background(), f.enc.Query(s, 1, lattice.Dim2, 1), false)
	require.NoError(t, err)
	require.False(t, h.Usable())
	require.True(t, errors.Is(h.StatsErr, errors.ErrFormat))

	// An empty formula is never treated as a cache hit.
	_, ok := f.store.Lookup(h.Query.Key())
	require.False(t, ok)
}

func TestEncode_CompilerFailures(t *testing.T) {
	s := mustSeq(t, "demo", "1001")

	t.Run("missing binary", func(t *testing.T) {
		f := newFixture(t, "")
		f.runner.RunFunc = func(ctx context.Context, name string, args ...string) (proc.Result, error) {
			return proc.Result{ExitCode: -1}, stderrors.New("executable file not found in $PATH")
		}
		_, err := f.enc.Encode(context.Background(), f.enc.Query(s, 1, lattice.Dim2, 1), false)
		require.True(t, errors.Is(err, errors.ErrExternalToolFailure))
		require.Contains(t, err.Error(), "bule2 --output dimacs")
	})

	t.Run("non-zero exit", func(t *testing.T) {
		f := newFixture(t, "")
		f.runner.RunFunc = func(ctx context.Context, name string, args ...string) (proc.Result, error) {
			return proc.Result{ExitCode: 2, Stderr: []byte("parse error")}, nil
		}
		_, err := f.enc.Encode(context.Background(), f.enc.Query(s, 1, lattice.Dim2, 1), false)
		require.True(t, errors.Is(err, errors.ErrExternalToolFailure))
	})
}

func TestEncode_MissingRuleFile(t *testing.T) {
	f := newFixture(t, "p cnf 1 1\n1 0\n")
	s := mustSeq(t, "demo", "1001")

	_, err := f.enc.Encode(context.Background(), f.enc.Query(s, 1, lattice.Dim2, 9), false)
	require.True(t, errors.Is(err, errors.ErrExternalToolFailure))
	require.Contains(t, err.Error(), "constraints_v9.bul")
	require.Contains(t, err.Error(), "--output dimacs")
	require.Empty(t, f.runner.Calls())

	q := f.enc.Query(s, 1, lattice.Dim2, 0)
	q.CountEncoding = "missing_counter.bul"
	_, err = f.enc.Encode(context.Background(), q, false)
	require.True(t, errors.Is(err, errors.ErrExternalToolFailure))
	require.Contains(t, err.Error(), "missing_counter.bul")
	require.Empty(t, f.runner.Calls())
}

func TestEncode_InvalidQuery(t *testing.T) {
	f := newFixture(t, "")
	s := mustSeq(t, "demo", "1001")

	_, err := f.enc.Encode(context.Background(), f.enc.Query(s, -1, lattice.Dim2, 0), false)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = f.enc.Encode(context.Background(), f.enc.Query(s, 1, lattice.Geometry(4), 0), false)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestKey_StableDigest(t *testing.T) {
	a := Query{Sequence: mustSeq(t, "x", "1010"), Objective: 3, Geometry: lattice.Dim2, Variant: 1, CountEncoding: "cc_a.bul"}
	b := Query{Sequence: mustSeq(t, "x", "1010"), Objective: 3, Geometry: lattice.Dim2, Variant: 1, CountEncoding: "bule/cc_a.bul"}
	require.Equal(t, a.Key(), b.Key())
	require.Equal(t, a.Key().Digest(), b.Key().Digest())

	c := a
	c.CountEncoding = "counter.bul"
	require.NotEqual(t, a.Key().Digest(), c.Key().Digest())
}
