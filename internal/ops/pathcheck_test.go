package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/errors"
)

var (
	reportExts = []string{".md", ".html"}
	runLogExts = []string{".jsonl"}
)

// outputDirs is a reports directory plus one extra allowed directory, each
// holding a finished report and run log.
type outputDirs struct {
	reports string
	extra   string
	cfg     *config.Config
}

func newOutputDirs(t *testing.T) outputDirs {
	t.Helper()
	d := outputDirs{reports: t.TempDir(), extra: t.TempDir(), cfg: config.DefaultConfig()}
	d.cfg.AllowedPaths = []string{d.extra, "relative/ignored"}
	for _, dir := range []string{d.reports, d.extra} {
		writeFile(t, filepath.Join(dir, "nightly.md"), "# Nightly\n")
		writeFile(t, filepath.Join(dir, "runs-all.jsonl"), "{}\n")
	}
	return d
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func symlinkOrSkip(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
}

func TestValidatePath_ReportTargets(t *testing.T) {
	d := newOutputDirs(t)
	outside := t.TempDir()

	tests := []struct {
		name string
		path string
		want errors.ErrorCode
	}{
		{"markdown in reports dir", filepath.Join(d.reports, "2026-10-17.md"), ""},
		{"html in reports dir", filepath.Join(d.reports, "2026-10-17.html"), ""},
		{"overwrite existing report", filepath.Join(d.reports, "nightly.md"), ""},
		{"html in allowed dir", filepath.Join(d.extra, "bench.html"), ""},
		{"relative allowed entry is ignored", filepath.Join("relative", "ignored", "r.md"), errors.ErrInvalidRequest},
		{"run log extension", filepath.Join(d.reports, "nightly.jsonl"), errors.ErrInvalidRequest},
		{"no extension", filepath.Join(d.reports, "nightly"), errors.ErrInvalidRequest},
		{"uppercase extension", filepath.Join(d.reports, "nightly.MD"), errors.ErrInvalidRequest},
		{"outside output dirs", filepath.Join(outside, "r.md"), errors.ErrInvalidRequest},
		{"subdirectory of reports", filepath.Join(d.reports, "2026", "r.md"), errors.ErrInvalidRequest},
		{"climbs out of reports", d.reports + "/../r.md", errors.ErrInvalidRequest},
		{"relative climb", "../reports/r.html", errors.ErrInvalidRequest},
		{"empty", "", errors.ErrInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, PathWrite, reportExts, d.reports, d.cfg)
			checkCode(t, err, tc.want)
		})
	}
}

func TestValidatePath_RunLogs(t *testing.T) {
	d := newOutputDirs(t)

	tests := []struct {
		name   string
		path   string
		access PathAccess
		want   errors.ErrorCode
	}{
		{"export to reports dir", filepath.Join(d.reports, "runs-hp20.jsonl"), PathWrite, ""},
		{"import from reports dir", filepath.Join(d.reports, "runs-all.jsonl"), PathRead, ""},
		{"import from allowed dir", filepath.Join(d.extra, "runs-all.jsonl"), PathRead, ""},
		{"import missing log", filepath.Join(d.reports, "runs-none.jsonl"), PathRead, errors.ErrNotFound},
		{"export missing log is fine", filepath.Join(d.extra, "runs-none.jsonl"), PathWrite, ""},
		{"import a report", filepath.Join(d.reports, "nightly.md"), PathRead, errors.ErrInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, tc.access, runLogExts, d.reports, d.cfg)
			checkCode(t, err, tc.want)
		})
	}
}

func TestValidatePath_UnsafePaths(t *testing.T) {
	d := newOutputDirs(t)
	d.cfg.AllowUnsafePaths = true
	anywhere := t.TempDir()
	writeFile(t, filepath.Join(anywhere, "old.jsonl"), "{}\n")
	symlinkOrSkip(t, filepath.Join(anywhere, "old.jsonl"), filepath.Join(anywhere, "link.jsonl"))

	checkCode(t, ValidatePath(filepath.Join(anywhere, "r.html"), PathWrite, reportExts, d.reports, d.cfg), "")
	checkCode(t, ValidatePath(filepath.Join(anywhere, "deep", "r.md"), PathWrite, reportExts, d.reports, d.cfg), "")
	checkCode(t, ValidatePath(filepath.Join(anywhere, "old.jsonl"), PathRead, runLogExts, d.reports, d.cfg), "")
	checkCode(t, ValidatePath(filepath.Join(anywhere, "gone.jsonl"), PathRead, runLogExts, d.reports, d.cfg), errors.ErrNotFound)

	// The symlink and traversal rules still hold.
	checkCode(t, ValidatePath(filepath.Join(anywhere, "link.jsonl"), PathRead, runLogExts, d.reports, d.cfg), errors.ErrInvalidRequest)
	checkCode(t, ValidatePath(anywhere+"/../r.md", PathWrite, reportExts, d.reports, d.cfg), errors.ErrInvalidRequest)
}

func TestValidatePath_Symlinks(t *testing.T) {
	d := newOutputDirs(t)
	elsewhere := t.TempDir()
	secret := filepath.Join(elsewhere, "secret.md")
	writeFile(t, secret, "secret\n")

	t.Run("report over a symlink", func(t *testing.T) {
		link := filepath.Join(d.reports, "latest.md")
		symlinkOrSkip(t, secret, link)
		checkCode(t, ValidatePath(link, PathWrite, reportExts, d.reports, d.cfg), errors.ErrInvalidRequest)
	})

	t.Run("import through a symlink", func(t *testing.T) {
		link := filepath.Join(d.extra, "linked.jsonl")
		symlinkOrSkip(t, filepath.Join(d.reports, "runs-all.jsonl"), link)
		checkCode(t, ValidatePath(link, PathRead, runLogExts, d.reports, d.cfg), errors.ErrInvalidRequest)
	})

	t.Run("symlinked reports dir resolves", func(t *testing.T) {
		link := filepath.Join(t.TempDir(), "reports")
		symlinkOrSkip(t, d.reports, link)
		resolved, err := filepath.EvalSymlinks(d.reports)
		if err != nil {
			t.Fatalf("resolve reports dir: %v", err)
		}
		// Only the resolved directory is accepted.
		checkCode(t, ValidatePath(filepath.Join(resolved, "r.md"), PathWrite, reportExts, link, nil), "")
		checkCode(t, ValidatePath(filepath.Join(link, "r.md"), PathWrite, reportExts, link, nil), errors.ErrInvalidRequest)
	})
}

func TestHasDotDot(t *testing.T) {
	tests := map[string]bool{
		"reports/nightly.md":          false,
		"../nightly.md":               true,
		"reports/../../etc/r.md":      true,
		"reports/..":                  true,
		"reports/hp..20.jsonl":        false,
		".foldsat/reports/nightly.md": false,
		"./nightly.md":                false,
	}
	for path, want := range tests {
		if got := hasDotDot(path); got != want {
			t.Errorf("hasDotDot(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hp20", "hp20"},
		{"S1-8 (Unger)", "S1-8 (Unger)"},
		{"input/3d/hp48", "input-3d-hp48"},
		{`input\hp48`, "input-hp48"},
		{"hp..48", "hp-48"},
		{"../../bench/hp64", "bench-hp64"},
		{"hp\x0020", "hp20"},
		{"seq\x7f\x1b", "seq"},
		{"--hp--36--", "hp-36"},
		{"/..\\", "unnamed"},
		{"", "unnamed"},
		{"protéine-é", "protéine-é"},
	}
	for _, tc := range tests {
		if got := SanitizeForFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func checkCode(t *testing.T, err error, want errors.ErrorCode) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		return
	}
	if !errors.Is(err, want) {
		t.Errorf("error = %v, want %s", err, want)
	}
}
