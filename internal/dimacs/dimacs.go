// Package dimacs reads the header of DIMACS CNF formulas and checks their
// syntax.
package dimacs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hpungsan/foldsat/internal/errors"
)

// Stats is the (variables, clauses) pair declared by a formula header.
type Stats struct {
	Variables int `json:"variables"`
	Clauses   int `json:"clauses"`
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return sc
}

// ReadHeader opens a formula file and returns its declared statistics.
func ReadHeader(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, errors.NewNotFound(path)
		}
		return Stats{}, errors.NewInternal(fmt.Errorf("open formula: %w", err))
	}
	defer f.Close()

	st, err := ParseHeader(f)
	if err != nil {
		return Stats{}, errors.NewFormat(path, err.Error())
	}
	return st, nil
}

// ParseHeader reads the first content line (skipping blanks and `c`
// comments) and takes its last two tokens as variables and clauses.
// Compilers differ in what precedes them, so only the tail is trusted.
func ParseHeader(r io.Reader) (Stats, error) {
	sc := newScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "c") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return Stats{}, fmt.Errorf("line %d: malformed header %q", lineNo, line)
		}
		v, err := strconv.Atoi(fields[len(fields)-2])
		if err != nil || v < 0 {
			return Stats{}, fmt.Errorf("line %d: bad variable count %q", lineNo, fields[len(fields)-2])
		}
		c, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || c < 0 {
			return Stats{}, fmt.Errorf("line %d: bad clause count %q", lineNo, fields[len(fields)-1])
		}
		return Stats{Variables: v, Clauses: c}, nil
	}
	if err := sc.Err(); err != nil {
		return Stats{}, fmt.Errorf("scan: %w", err)
	}
	return Stats{}, fmt.Errorf("empty formula")
}

// ValidateFile checks that the file at path is a well-formed CNF formula.
func ValidateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound(path)
		}
		return errors.NewInternal(fmt.Errorf("open formula: %w", err))
	}
	defer f.Close()

	if err := Validate(f); err != nil {
		return errors.NewFormat(path, err.Error())
	}
	return nil
}

// Validate checks the `p cnf` header, that every clause ends in 0 and that
// literals stay within the declared variable range. Extra clauses beyond
// the declared count are tolerated; fewer are not.
func Validate(r io.Reader) error {
	sc := newScanner(r)

	var (
		seenHeader  bool
		numVars     int
		numClauses  int
		seenClauses int
		lineNo      int
	)

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		// '%' marks end of data in some benchmark sets
		if strings.HasPrefix(line, "%") {
			break
		}
		if line == "" || strings.HasPrefix(line, "c") {
			continue
		}

		if !seenHeader {
			fields := strings.Fields(line)
			if len(fields) != 4 || fields[0] != "p" || fields[1] != "cnf" {
				return fmt.Errorf("line %d: expected 'p cnf <vars> <clauses>', got %q", lineNo, line)
			}
			var err error
			numVars, err = strconv.Atoi(fields[2])
			if err != nil || numVars < 0 {
				return fmt.Errorf("line %d: invalid variable count %q", lineNo, fields[2])
			}
			numClauses, err = strconv.Atoi(fields[3])
			if err != nil || numClauses < 0 {
				return fmt.Errorf("line %d: invalid clause count %q", lineNo, fields[3])
			}
			seenHeader = true
			continue
		}

		fields := strings.Fields(line)
		terminated := false
		for i, tok := range fields {
			val, err := strconv.Atoi(tok)
			if err != nil {
				return fmt.Errorf("line %d: non-integer token %q", lineNo, tok)
			}
			if val == 0 {
				if i != len(fields)-1 {
					return fmt.Errorf("line %d: extra tokens after 0", lineNo)
				}
				terminated = true
				break
			}
			if val < 0 {
				val = -val
			}
			if val > numVars {
				return fmt.Errorf("line %d: literal %d out of range 1..%d", lineNo, val, numVars)
			}
		}
		if !terminated {
			return fmt.Errorf("line %d: clause missing terminating 0", lineNo)
		}
		seenClauses++
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if !seenHeader {
		return fmt.Errorf("missing 'p cnf' header")
	}
	if seenClauses < numClauses {
		return fmt.Errorf("clause count mismatch: header says %d, saw %d", numClauses, seenClauses)
	}
	return nil
}
