package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/errors"
)

// PathAccess says whether a vetted path is about to be read or written.
type PathAccess int

const (
	PathRead  PathAccess = iota // import
	PathWrite                   // report, export
)

// ValidatePath vets a user-supplied report, export or import path before it
// is opened. The path must not contain a ".." component and must end in one
// of exts. Its parent must be reportsDir or an absolute cfg.AllowedPaths
// entry exactly, never a subdirectory of one, and must not be a symlink.
// cfg.AllowUnsafePaths lifts the directory rule but not the symlink rule on
// the file itself. A path read must exist.
//
// Nested directories are refused so that no intermediate component can be
// swapped for a symlink after this check; O_NOFOLLOW guards the file itself.
func ValidatePath(path string, access PathAccess, exts []string, reportsDir string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if hasDotDot(path) {
		return errors.NewInvalidRequest(fmt.Sprintf("path %q must not contain ..", path))
	}
	if ext := filepath.Ext(path); !slices.Contains(exts, ext) {
		return errors.NewInvalidRequest(fmt.Sprintf("path %q: extension %q not in %v", path, ext, exts))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path %q: %v", path, err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		if err := checkParent(filepath.Dir(abs), reportsDir, cfg); err != nil {
			return err
		}
	}

	info, err := os.Lstat(abs)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		return errors.NewInvalidRequest(fmt.Sprintf("path %q is a symlink", path))
	case access == PathRead && os.IsNotExist(err):
		return errors.NewNotFound(path)
	}
	return nil
}

func checkParent(dir, reportsDir string, cfg *config.Config) error {
	roots, err := allowedRoots(reportsDir, cfg)
	if err != nil {
		return err
	}
	if !slices.Contains(roots, dir) {
		return errors.NewInvalidRequest(fmt.Sprintf(
			"%s is not an output directory (subdirectories are refused); use one of %s",
			dir, strings.Join(roots, ", ")))
	}
	if isSymlink(dir) {
		return errors.NewInvalidRequest(fmt.Sprintf("directory %s is a symlink", dir))
	}
	return nil
}

// allowedRoots lists reportsDir and the absolute AllowedPaths entries as
// cleaned absolute paths. A root that is itself a symlink is resolved.
func allowedRoots(reportsDir string, cfg *config.Config) ([]string, error) {
	candidates := []string{reportsDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				candidates = append(candidates, p)
			}
		}
	}

	roots := make([]string, 0, len(candidates))
	for _, c := range candidates {
		root, err := filepath.Abs(c)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid output directory %q: %v", c, err))
		}
		if isSymlink(root) {
			if root, err = filepath.EvalSymlinks(root); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("output directory %q: %v", c, err))
			}
		}
		roots = append(roots, root)
	}
	return roots, nil
}

func isSymlink(p string) bool {
	info, err := os.Lstat(p)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// hasDotDot splits on both '/' and the OS separator.
func hasDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

var filenameReplacer = strings.NewReplacer("/", "-", "\\", "-", "..", "-")

// SanitizeForFilename turns a sequence name into one safe file name
// component, falling back to "unnamed".
func SanitizeForFilename(s string) string {
	s = filenameReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	if s = strings.Trim(s, "-"); s == "" {
		return "unnamed"
	}
	return s
}
