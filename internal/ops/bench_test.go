package ops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hpungsan/foldsat/internal/errors"
)

func benchCorpus(t *testing.T, env *testEnv) string {
	t.Helper()
	dir := filepath.Join(env.root, "input")
	writeSequence(t, dir, "length-7-1", "1001101")
	writeSequence(t, dir, "length-4-1", "0000")
	writeSequence(t, dir, "length-5-1", "10a01") // unparseable
	return dir
}

func TestBench_RunsEveryCombination(t *testing.T) {
	env := newTestEnv(t, 2)
	dir := benchCorpus(t, env)

	out, err := Bench(context.Background(), env.Env, BenchInput{
		Corpus:   Corpus{Path: dir},
		Policies: []string{"linear", "binary"},
	})
	if err != nil {
		t.Fatalf("Bench failed: %v", err)
	}
	if out.Sequences != 2 || out.Runs != 4 || out.Failed != 0 {
		t.Errorf("sequences=%d runs=%d failed=%d", out.Sequences, out.Runs, out.Failed)
	}
	if len(out.Skipped) != 1 {
		t.Errorf("skipped = %v, want the unparseable file", out.Skipped)
	}

	// Shortest sequence first; its bound is 0 so no oracle calls are made.
	first := out.Items[0]
	if first.Sequence != "length-4-1" || first.MaxContacts != 0 || first.Queries != 0 {
		t.Errorf("first item = %+v", first)
	}
	for _, item := range out.Items[2:] {
		if item.Sequence != "length-7-1" || item.MaxContacts != 1 {
			t.Errorf("item = %+v", item)
		}
		if item.RunID == "" || item.CSVPath == "" {
			t.Errorf("item not recorded: %+v", item.TrackedRun)
		}
	}
	if n := countRuns(t, env.DB); n != 4 {
		t.Errorf("stored runs = %d, want 4", n)
	}

	// Both policies share one CSV per target: header plus two rows.
	lines := readLines(t, filepath.Join(env.Config.ResultsDir, "length-7-1_2d_v0.csv"))
	if len(lines) != 3 {
		t.Errorf("csv lines = %d, want 3", len(lines))
	}
}

func TestBench_OracleErrorContinues(t *testing.T) {
	env := newTestEnv(t, 2)
	dir := benchCorpus(t, env)

	out, err := Bench(context.Background(), env.Env, BenchInput{
		Corpus:   Corpus{Path: dir},
		Solvers:  []string{"indet", "gophersat"},
		Policies: []string{"binary"},
	})
	if err != nil {
		t.Fatalf("Bench failed: %v", err)
	}
	// length-4-1 never reaches the solver, so only length-7-1 with indet fails.
	if out.Runs != 4 || out.Failed != 1 {
		t.Errorf("runs=%d failed=%d", out.Runs, out.Failed)
	}
	if n := countRuns(t, env.DB); n != 4 {
		t.Errorf("stored runs = %d, want 4", n)
	}
}

func TestBench_ToolFailureStops(t *testing.T) {
	env := newTestEnv(t, 2)
	dir := benchCorpus(t, env)

	_, err := Bench(context.Background(), env.Env, BenchInput{
		Corpus:  Corpus{Path: dir},
		Solvers: []string{"missing-solver"},
	})
	if !errors.Is(err, errors.ErrExternalToolFailure) {
		t.Errorf("error = %v, want EXTERNAL_TOOL_FAILURE", err)
	}
}

func TestBench_CorpusErrors(t *testing.T) {
	env := newTestEnv(t, 2)

	if _, err := Bench(context.Background(), env.Env, BenchInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty corpus error = %v", err)
	}
	if _, err := Bench(context.Background(), env.Env, BenchInput{Corpus: Corpus{Path: filepath.Join(env.root, "nope")}}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing corpus error = %v", err)
	}
	dir := benchCorpus(t, env)
	if _, err := Bench(context.Background(), env.Env, BenchInput{Corpus: Corpus{Path: dir, Kind: "synthetic"}}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad kind error = %v", err)
	}
}
