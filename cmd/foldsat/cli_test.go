package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/db"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/ops"
)

// setupTestEnv creates an Env backed by a temporary run store.
func setupTestEnv(t *testing.T) *ops.Env {
	t.Helper()
	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // allow temp dirs in tests
	return &ops.Env{DB: database, Config: cfg, BaseDir: baseDir}
}

// runApp runs the CLI and returns what it wrote to stdout.
func runApp(t *testing.T, env *ops.Env, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()

	err := newCLIApp(env).Run(append([]string{"foldsat"}, args...))
	return buf.String(), err
}

func seedRun(t *testing.T, env *ops.Env, id, sequence string, createdAt int64) {
	t.Helper()
	r := &db.Run{
		ID:          id,
		Sequence:    sequence,
		Labels:      "1001101",
		Length:      7,
		Dims:        2,
		Variant:     1,
		Solver:      "gophersat",
		Policy:      "linear",
		MaxContacts: 2,
		UpperBound:  2,
		Queries:     2,
		CreatedAt:   createdAt,
		Probes:      []db.Probe{{Objective: 2, Verdict: "feasible"}, {Objective: 3, Verdict: "infeasible"}},
	}
	if err := db.InsertRun(env.DB, r); err != nil {
		t.Fatalf("seed run: %v", err)
	}
}

func TestCLIBound(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runApp(t, env, "bound", "--labels", "1001101", "--dims", "2", "--dims", "3")
	if err != nil {
		t.Fatalf("bound command failed: %v", err)
	}

	var output ops.BoundOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.HCount != 4 || len(output.Bounds) != 2 {
		t.Errorf("output = %+v", output)
	}
	if output.Bounds[0].UpperBound != 2 {
		t.Errorf("2D bound = %d, want 2", output.Bounds[0].UpperBound)
	}
}

func TestCLIBound_FromFile(t *testing.T) {
	env := setupTestEnv(t)
	path := filepath.Join(t.TempDir(), "seq1")
	if err := os.WriteFile(path, []byte("1001101\n"), 0644); err != nil {
		t.Fatalf("write sequence: %v", err)
	}

	out, err := runApp(t, env, "bound", path)
	if err != nil {
		t.Fatalf("bound command failed: %v", err)
	}
	var output ops.BoundOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Sequence != "seq1" || output.Length != 7 {
		t.Errorf("output = %+v", output)
	}
}

func TestCLIGen(t *testing.T) {
	env := setupTestEnv(t)
	dir := t.TempDir()

	out, err := runApp(t, env, "gen", "--dir", dir, "--length", "12", "--count", "3", "--seed", "42")
	if err != nil {
		t.Fatalf("gen command failed: %v", err)
	}
	var output ops.GenOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(output.Paths) != 3 || output.Seed != 42 {
		t.Errorf("output = %+v", output)
	}
	for _, p := range output.Paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("generated file missing: %v", err)
		}
	}
}

func TestCLIRuns(t *testing.T) {
	env := setupTestEnv(t)
	seedRun(t, env, "01A", "seq-a", 100)
	seedRun(t, env, "01B", "seq-b", 200)

	out, err := runApp(t, env, "runs", "list", "--sequence", "seq-a")
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	var list ops.RunsOutput
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != "01A" {
		t.Errorf("list = %+v", list.Items)
	}

	out, err = runApp(t, env, "runs", "get", "01B")
	if err != nil {
		t.Fatalf("runs get failed: %v", err)
	}
	var run db.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(run.Probes) != 2 {
		t.Errorf("probes = %d, want 2", len(run.Probes))
	}

	if _, err := runApp(t, env, "runs", "delete", "01B"); err != nil {
		t.Fatalf("runs delete failed: %v", err)
	}
	_, err = runApp(t, env, "runs", "get", "01B")
	if err == nil || !strings.Contains(err.Error(), "[NOT_FOUND]") {
		t.Errorf("get after delete error = %v", err)
	}
}

func TestCLIReport(t *testing.T) {
	env := setupTestEnv(t)
	seedRun(t, env, "01A", "seq-a", 100)

	out, err := runApp(t, env, "report", "--title", "Nightly")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.HasPrefix(out, "# Nightly") {
		t.Errorf("report = %q", out)
	}

	path := filepath.Join(t.TempDir(), "runs.html")
	out, err = runApp(t, env, "report", "--format", "html", "--out", path)
	if err != nil {
		t.Fatalf("report --out failed: %v", err)
	}
	var output ops.ReportOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Path != path {
		t.Errorf("path = %q, want %q", output.Path, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "<table>") {
		t.Error("expected HTML table in report file")
	}
}

func TestCLIExportImport(t *testing.T) {
	src := setupTestEnv(t)
	seedRun(t, src, "01A", "seq-a", 100)
	seedRun(t, src, "01B", "seq-b", 200)

	path := filepath.Join(t.TempDir(), "runs.jsonl")
	out, err := runApp(t, src, "export", "--path", path)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var exported ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if exported.Count != 2 {
		t.Errorf("exported %d runs, want 2", exported.Count)
	}

	dst := setupTestEnv(t)
	out, err = runApp(t, dst, "import", "--path", path)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	var imported ops.ImportOutput
	if err := json.Unmarshal([]byte(out), &imported); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if imported.Imported != 2 {
		t.Errorf("imported %d runs, want 2", imported.Imported)
	}

	// Importing again collides on every id and imports nothing
	out, err = runApp(t, dst, "import", "--path", path)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &imported); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if imported.Imported != 0 || len(imported.Errors) != 2 {
		t.Errorf("second import = %+v", imported)
	}
	out, err = runApp(t, dst, "import", "--path", path, "--mode", "skip")
	if err != nil {
		t.Fatalf("import --mode skip failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &imported); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if imported.Imported != 0 || imported.Skipped != 2 {
		t.Errorf("skip import = %+v", imported)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"bound without sequence", []string{"bound"}, "[INVALID_REQUEST]"},
		{"bound with both inputs", []string{"bound", "--labels", "10", "seqfile"}, "[INVALID_REQUEST]"},
		{"bound missing file", []string{"bound", filepath.Join(t.TempDir(), "missing")}, "[NOT_FOUND]"},
		{"runs get missing", []string{"runs", "get", "nope"}, "[NOT_FOUND]"},
		{"runs list bad dims", []string{"runs", "list", "--dims", "5"}, "[INVALID_REQUEST]"},
		{"report bad format", []string{"report", "--format", "pdf"}, "[INVALID_REQUEST]"},
		{"compare unknown axis", []string{"compare", "--by", "solver", "corpus"}, "[INVALID_REQUEST]"},
		{"compare one count encoding", []string{"compare", "--by", "count-encoding", "--count-encoding", "cc_a.bul", "corpus"}, "[INVALID_REQUEST]"},
		{"solve count encoding path", []string{"solve", "--labels", "1001101", "--count-encoding", "../counter.bul"}, "[INVALID_REQUEST]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, env, tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.code) {
				t.Errorf("error = %q, want %s", err.Error(), tt.code)
			}
		})
	}
}

func TestOutputError(t *testing.T) {
	err := outputError(errors.NewInvalidRequest("bad input"))
	if err.Error() != "[INVALID_REQUEST] bad input" {
		t.Errorf("outputError = %q", err.Error())
	}
	coder, ok := err.(cli.ExitCoder)
	if !ok || coder.ExitCode() != 1 {
		t.Errorf("expected exit code 1, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(cli.Exit("inconsistent", 2)); got != 2 {
		t.Errorf("exitCode = %d, want 2", got)
	}
	if got := exitCode(os.ErrNotExist); got != 1 {
		t.Errorf("exitCode = %d, want 1", got)
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"foldsat"}, false},
		{[]string{"foldsat", "--help"}, true},
		{[]string{"foldsat", "-h"}, true},
		{[]string{"foldsat", "help"}, true},
		{[]string{"foldsat", "--version"}, true},
		{[]string{"foldsat", "-v"}, true},
		{[]string{"foldsat", "solve"}, false},
	}
	for _, tt := range tests {
		if got := isHelpOrVersion(tt.args); got != tt.want {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestBaseDir_EnvOverride(t *testing.T) {
	t.Setenv("FOLDSAT_HOME", "/tmp/foldsat-home")
	dir, err := baseDir()
	if err != nil {
		t.Fatalf("baseDir failed: %v", err)
	}
	if dir != "/tmp/foldsat-home" {
		t.Errorf("baseDir = %q", dir)
	}
}
