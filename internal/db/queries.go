package db

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/foldsat/internal/errors"
)

// Run is one persisted search run. Durations are nanoseconds.
type Run struct {
	ID              string  `json:"id"`
	Sequence        string  `json:"sequence"`
	Labels          string  `json:"labels"`
	Length          int     `json:"length"`
	Dims            int     `json:"dims"`
	Variant         int     `json:"variant"`
	CountEncoding   string  `json:"count_encoding,omitempty"`
	Solver          string  `json:"solver"`
	Policy          string  `json:"policy"`
	MaxContacts     int     `json:"max_contacts"`
	UpperBound      int     `json:"upper_bound"`
	Queries         int     `json:"queries"`
	TotalSolveNS    int64   `json:"total_solve_ns"`
	FeasibleSolveNS int64   `json:"feasible_solve_ns"`
	TotalEncodeNS   int64   `json:"total_encode_ns"`
	Variables       *int    `json:"variables,omitempty"`
	Clauses         *int    `json:"clauses,omitempty"`
	ErrorCode       string  `json:"error_code,omitempty"`
	CreatedAt       int64   `json:"created_at"`
	Probes          []Probe `json:"probes,omitempty"`
}

// Probe is one oracle call of a run, in call order.
type Probe struct {
	Objective int    `json:"objective"`
	Verdict   string `json:"verdict"`
	SolveNS   int64  `json:"solve_ns"`
	EncodeNS  int64  `json:"encode_ns"`
	Cached    bool   `json:"cached"`
	Variables int    `json:"variables"`
	Clauses   int    `json:"clauses"`
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Sequence string
	Dims     int
	Variant  *int
	Solver   string
	Policy   string
	Limit    int
}

// InsertRun stores a run and its probes in one transaction.
func InsertRun(db *sql.DB, r *Run) error {
	return InsertRuns(db, []*Run{r})
}

// InsertRuns stores several runs atomically. Any failure rolls back all of them.
func InsertRuns(db *sql.DB, runs []*Run) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	for _, r := range runs {
		if err := insertRun(tx, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func insertRun(tx *sql.Tx, r *Run) error {
	_, err := tx.Exec(`
		INSERT INTO runs (
			id, sequence, labels, length, dims, variant, count_encoding,
			solver, policy, max_contacts, upper_bound, queries,
			total_solve_ns, feasible_solve_ns, total_encode_ns,
			variables, clauses, error_code, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Sequence, r.Labels, r.Length, r.Dims, r.Variant, toNullString(r.CountEncoding),
		r.Solver, r.Policy, r.MaxContacts, r.UpperBound, r.Queries,
		r.TotalSolveNS, r.FeasibleSolveNS, r.TotalEncodeNS,
		toNullInt(r.Variables), toNullInt(r.Clauses), toNullString(r.ErrorCode), r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO probes (run_id, ord, objective, verdict, solve_ns, encode_ns, cached, variables, clauses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for i, p := range r.Probes {
		cached := 0
		if p.Cached {
			cached = 1
		}
		if _, err := stmt.Exec(r.ID, i, p.Objective, p.Verdict, p.SolveNS, p.EncodeNS, cached, p.Variables, p.Clauses); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

// RunExists reports whether a run with id is stored.
func RunExists(db *sql.DB, id string) (bool, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&n); err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// DeleteRun removes a run; its probes go with it.
func DeleteRun(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

const runColumns = `
	id, sequence, labels, length, dims, variant, count_encoding,
	solver, policy, max_contacts, upper_bound, queries,
	total_solve_ns, feasible_solve_ns, total_encode_ns,
	variables, clauses, error_code, created_at
`

// GetRun retrieves a run and its probes by ULID.
func GetRun(db *sql.DB, id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	probes, err := listProbes(db, id)
	if err != nil {
		return nil, err
	}
	r.Probes = probes
	return r, nil
}

// ListRuns returns runs matching f, newest first. Probes are not loaded.
func ListRuns(db *sql.DB, f RunFilter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Sequence != "" {
		where = append(where, "sequence = ?")
		args = append(args, f.Sequence)
	}
	if f.Dims != 0 {
		where = append(where, "dims = ?")
		args = append(args, f.Dims)
	}
	if f.Variant != nil {
		where = append(where, "variant = ?")
		args = append(args, *f.Variant)
	}
	if f.Solver != "" {
		where = append(where, "solver = ?")
		args = append(args, f.Solver)
	}
	if f.Policy != "" {
		where = append(where, "policy = ?")
		args = append(args, f.Policy)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// ULIDs sort by creation time within the same second
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

func listProbes(db *sql.DB, runID string) ([]Probe, error) {
	rows, err := db.Query(`
		SELECT objective, verdict, solve_ns, encode_ns, cached, variables, clauses
		FROM probes WHERE run_id = ? ORDER BY ord
	`, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var probes []Probe
	for rows.Next() {
		var (
			p      Probe
			cached int
		)
		if err := rows.Scan(&p.Objective, &p.Verdict, &p.SolveNS, &p.EncodeNS, &cached, &p.Variables, &p.Clauses); err != nil {
			return nil, errors.NewInternal(err)
		}
		p.Cached = cached != 0
		probes = append(probes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return probes, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run struct.
func scanRun(row rowScanner) (*Run, error) {
	var (
		r             Run
		countEncoding sql.NullString
		variables     sql.NullInt64
		clauses       sql.NullInt64
		errorCode     sql.NullString
	)

	err := row.Scan(
		&r.ID, &r.Sequence, &r.Labels, &r.Length, &r.Dims, &r.Variant, &countEncoding,
		&r.Solver, &r.Policy, &r.MaxContacts, &r.UpperBound, &r.Queries,
		&r.TotalSolveNS, &r.FeasibleSolveNS, &r.TotalEncodeNS,
		&variables, &clauses, &errorCode, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.CountEncoding = countEncoding.String
	r.ErrorCode = errorCode.String
	r.Variables = fromNullInt(variables)
	r.Clauses = fromNullInt(clauses)

	return &r, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
