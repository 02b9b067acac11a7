// Package record appends search results to per-target CSV files.
package record

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hpungsan/foldsat/internal/dimacs"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/search"
)

// Header is the first line of every results file.
var Header = []string{
	"length", "encode_time", "solve_time", "sat_solve_time",
	"contacts", "variables", "clauses", "solver", "policy",
}

// Meta identifies the results file a row belongs to.
type Meta struct {
	Name    string
	Length  int
	Dims    int
	Variant int
}

// MetaOf derives the target of a search result.
func MetaOf(r *search.Result) Meta {
	return Meta{Name: r.Sequence, Length: r.Length, Dims: r.Geometry, Variant: r.Variant}
}

// Recorder writes rows under Dir. The first row for a target in a
// Recorder's lifetime truncates the file and writes the header; later rows
// append.
type Recorder struct {
	Dir string

	mu      sync.Mutex
	started map[string]bool
}

// New returns a Recorder writing into dir.
func New(dir string) *Recorder {
	return &Recorder{Dir: dir, started: make(map[string]bool)}
}

// Path returns the results file for m.
func (r *Recorder) Path(m Meta) string {
	return filepath.Join(r.Dir, fmt.Sprintf("%s_%dd_v%d.csv", m.Name, m.Dims, m.Variant))
}

// Record appends one row for res.
func (r *Recorder) Record(m Meta, res *search.Result, st dimacs.Stats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.Path(m)
	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return errors.NewInternal(fmt.Errorf("create results directory: %w", err))
	}

	fresh := !r.started[path]
	flag := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if fresh {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("open results file: %w", err))
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(Header); err != nil {
			return errors.NewInternal(err)
		}
	}
	if err := w.Write(row(m, res, st)); err != nil {
		return errors.NewInternal(err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.NewInternal(fmt.Errorf("write results file: %w", err))
	}
	r.started[path] = true
	return nil
}

func row(m Meta, res *search.Result, st dimacs.Stats) []string {
	return []string{
		strconv.Itoa(m.Length),
		seconds(res.TotalEncode),
		seconds(res.TotalSolve),
		seconds(res.FeasibleSolve),
		strconv.Itoa(res.MaxContacts),
		strconv.Itoa(st.Variables),
		strconv.Itoa(st.Clauses),
		res.Solver,
		string(res.Policy),
	}
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
