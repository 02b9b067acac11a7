package ops

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/db"
	"github.com/hpungsan/foldsat/internal/proc"
)

const (
	satFormula   = "p cnf 2 2\n1 2 0\n-1 0\n"
	unsatFormula = "p cnf 1 2\n1 0\n-1 0\n"
)

// testEnv wires ops to a fake compiler and the in-process gophersat
// backend. The fake compiler emits a satisfiable formula when the fact
// file's goal is at most maxGoal.
type testEnv struct {
	*Env
	root   string
	runner *proc.Mock
}

func newTestEnv(t *testing.T, maxGoal int) *testEnv {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.RulesDir = filepath.Join(root, "bule")
	cfg.ModelsDir = filepath.Join(root, "models")
	cfg.ResultsDir = filepath.Join(root, "results")
	cfg.DefaultSolver = "gophersat"
	if err := os.MkdirAll(cfg.RulesDir, 0755); err != nil {
		t.Fatalf("mkdir rules: %v", err)
	}
	for _, name := range []string{"constraints_2d_v0.bul", "constraints_3d_v0.bul", "constraints_v1.bul", "cc_a.bul", "counter.bul"} {
		if err := os.WriteFile(filepath.Join(cfg.RulesDir, name), []byte("% rules\n"), 0644); err != nil {
			t.Fatalf("write rule: %v", err)
		}
	}

	baseDir := filepath.Join(root, ".foldsat")
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	runner := &proc.Mock{RunFunc: fakeCompiler(maxGoal)}
	return &testEnv{
		Env: &Env{
			DB:      database,
			Config:  cfg,
			BaseDir: baseDir,
			Runner:  runner,
		},
		root:   root,
		runner: runner,
	}
}

func fakeCompiler(maxGoal int) func(ctx context.Context, name string, args ...string) (proc.Result, error) {
	return ruleCompiler(func([]string) (int, int) { return maxGoal, 0 })
}

// ruleCompiler is fakeCompiler with the goal limit and a number of padding
// variables chosen from the base names of the rule files compiled. Each
// padding variable adds one positive unit clause, so padding never changes
// satisfiability.
func ruleCompiler(shape func(rules []string) (maxGoal, padding int)) func(ctx context.Context, name string, args ...string) (proc.Result, error) {
	return func(ctx context.Context, name string, args ...string) (proc.Result, error) {
		if name == "indet" {
			return proc.Result{Stdout: []byte("s UNKNOWN\n")}, nil
		}
		if name != "bule2" {
			return proc.Result{ExitCode: 127, Stderr: []byte(name + ": not found")}, nil
		}
		// --output dimacs <rules...> <facts>
		rules := make([]string, 0, len(args))
		for _, a := range args[2 : len(args)-1] {
			rules = append(rules, filepath.Base(a))
		}
		maxGoal, padding := shape(rules)

		goal, err := readGoal(args[len(args)-1])
		if err != nil {
			return proc.Result{}, err
		}
		formula := unsatFormula
		if goal <= maxGoal {
			formula = satFormula
		}
		return proc.Result{Stdout: []byte(padFormula(formula, padding))}, nil
	}
}

func padFormula(formula string, padding int) string {
	if padding == 0 {
		return formula
	}
	var vars, clauses int
	header, body, _ := strings.Cut(formula, "\n")
	fmt.Sscanf(header, "p cnf %d %d", &vars, &clauses)

	var b strings.Builder
	fmt.Fprintf(&b, "p cnf %d %d\n%s", vars+padding, clauses+padding, body)
	for v := vars + 1; v <= vars+padding; v++ {
		fmt.Fprintf(&b, "%d 0\n", v)
	}
	return b.String()
}

func readGoal(factPath string) (int, error) {
	f, err := os.Open(factPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var goal int
		if _, err := fmt.Sscanf(scanner.Text(), "#ground goal[%d].", &goal); err == nil {
			return goal, nil
		}
	}
	return 0, fmt.Errorf("no goal in %s", factPath)
}

// compilerCalls counts compiler invocations recorded by the mock.
func (e *testEnv) compilerCalls() int {
	n := 0
	for _, c := range e.runner.Calls() {
		if c.Name == "bule2" {
			n++
		}
	}
	return n
}

func writeSequence(t *testing.T, dir, name, labels string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(labels+"\n"), 0644); err != nil {
		t.Fatalf("write sequence: %v", err)
	}
	return path
}

func countRuns(t *testing.T, database *sql.DB) int {
	t.Helper()
	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	return n
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}
