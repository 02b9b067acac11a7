// Package ops implements the foldsat operations shared by the CLI and the
// MCP server. Each operation takes an Env plus an Input struct and returns
// an Output struct that serializes directly to JSON.
package ops

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/encode"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/lattice"
	"github.com/hpungsan/foldsat/internal/oracle"
	"github.com/hpungsan/foldsat/internal/proc"
	"github.com/hpungsan/foldsat/internal/search"
	"github.com/hpungsan/foldsat/internal/sequence"
)

// List limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 500
)

// Env carries the collaborators every operation needs.
type Env struct {
	DB      *sql.DB // nil disables run persistence
	Config  *config.Config
	BaseDir string // holds foldsat.db and reports/
	Runner  proc.Runner
	Logger  *slog.Logger
}

func (env *Env) logger() *slog.Logger {
	if env.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return env.Logger
}

func (env *Env) runner() proc.Runner {
	if env.Runner == nil {
		return proc.NewExec()
	}
	return env.Runner
}

func (env *Env) encoder() *encode.Encoder {
	return encode.New(env.Config, encode.NewFileStore(env.Config.ModelsDir), env.runner(), env.logger())
}

func (env *Env) oracle() *oracle.Oracle {
	return oracle.New(env.Config, env.runner(), env.logger()).WithTimeout(env.Config.SolverTimeout())
}

func (env *Env) engine() *search.Engine {
	return search.NewEngine(env.encoder(), env.oracle(), env.logger())
}

// SequenceRef names a sequence either by file path or by inline labels.
type SequenceRef struct {
	Path   string // sequence file
	Labels string // inline labels, used when Path is empty
	Name   string // name for inline labels; default "inline"
}

// Resolve loads the referenced sequence.
func (r SequenceRef) Resolve() (*sequence.Sequence, error) {
	path := strings.TrimSpace(r.Path)
	labels := strings.TrimSpace(r.Labels)
	switch {
	case path != "" && labels != "":
		return nil, errors.NewInvalidRequest("specify either a sequence path or labels, not both")
	case path != "":
		return sequence.Load(path)
	case labels != "":
		name := SanitizeForFilename(strings.TrimSpace(r.Name))
		if strings.TrimSpace(r.Name) == "" {
			name = "inline"
		}
		return sequence.Parse(name, labels)
	}
	return nil, errors.NewInvalidRequest("a sequence path or labels is required")
}

// geometries converts dimension numbers, defaulting to 2D.
func geometries(dims []int) ([]lattice.Geometry, error) {
	if len(dims) == 0 {
		return []lattice.Geometry{lattice.Dim2}, nil
	}
	out := make([]lattice.Geometry, 0, len(dims))
	for _, d := range dims {
		g, err := lattice.FromDims(d)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func geometry(dims int) (lattice.Geometry, error) {
	if dims == 0 {
		return lattice.Dim2, nil
	}
	return lattice.FromDims(dims)
}

// policies parses policy names; empty means every policy.
func policies(names []string) ([]search.Kind, error) {
	if len(names) == 0 {
		return search.AllKinds, nil
	}
	out := make([]search.Kind, 0, len(names))
	for _, n := range names {
		k, err := search.ParseKind(n)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func (env *Env) solverName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return env.Config.DefaultSolver
}

// ReportsDir is where report and export files go by default.
func (env *Env) ReportsDir() string {
	return filepath.Join(env.BaseDir, "reports")
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create directory %s: %w", dir, err))
	}
	return nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// generateULID creates a new ULID using crypto/rand entropy. IDs from one
// process increase strictly, so runs stored in the same second keep their
// creation order.
func generateULID() (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
