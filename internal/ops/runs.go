package ops

import (
	stderrors "errors"
	"strings"

	"github.com/hpungsan/foldsat/internal/db"
	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/search"
)

// RunsInput filters stored runs.
type RunsInput struct {
	Sequence string
	Dims     int
	Variant  *int
	Solver   string
	Policy   string
	Limit    int // default: 20, max: 500
}

// RunsOutput contains the result of the ListRuns operation.
type RunsOutput struct {
	Items []db.Run `json:"items"`
	Limit int      `json:"limit"`
	Sort  string   `json:"sort"`
}

func (env *Env) requireDB() error {
	if env.DB == nil {
		return errors.NewInternal(errNoDatabase)
	}
	return nil
}

var errNoDatabase = stderrors.New("run store is not open")

// filter validates the input and applies limit defaults and bounds.
func (input RunsInput) filter() (db.RunFilter, error) {
	f := db.RunFilter{
		Sequence: strings.TrimSpace(input.Sequence),
		Dims:     input.Dims,
		Variant:  input.Variant,
		Solver:   strings.TrimSpace(input.Solver),
		Limit:    input.Limit,
	}
	if f.Dims != 0 && f.Dims != 2 && f.Dims != 3 {
		return f, errors.NewInvalidRequest("dims must be 2 or 3")
	}
	if p := strings.TrimSpace(input.Policy); p != "" {
		k, err := search.ParseKind(p)
		if err != nil {
			return f, err
		}
		f.Policy = string(k)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f, nil
}

// ListRuns returns stored runs, newest first, without probes.
func ListRuns(env *Env, input RunsInput) (*RunsOutput, error) {
	if err := env.requireDB(); err != nil {
		return nil, err
	}
	f, err := input.filter()
	if err != nil {
		return nil, err
	}
	runs, err := db.ListRuns(env.DB, f)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []db.Run{}
	}
	return &RunsOutput{Items: runs, Limit: f.Limit, Sort: "created_at_desc"}, nil
}

// GetRun returns one stored run with its probe trace.
func GetRun(env *Env, id string) (*db.Run, error) {
	if err := env.requireDB(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("run id is required")
	}
	return db.GetRun(env.DB, id)
}

// DeleteRunOutput contains the result of the DeleteRun operation.
type DeleteRunOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteRun removes a stored run.
func DeleteRun(env *Env, id string) (*DeleteRunOutput, error) {
	if err := env.requireDB(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("run id is required")
	}
	if err := db.DeleteRun(env.DB, id); err != nil {
		return nil, err
	}
	return &DeleteRunOutput{Deleted: true, ID: id}, nil
}
