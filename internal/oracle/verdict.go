package oracle

import (
	"fmt"
	"strings"
)

// Verdict is the oracle's answer for one objective.
type Verdict int

const (
	// Error means the output could not be classified. It is never read as
	// infeasible.
	Error Verdict = iota
	Feasible
	Infeasible
)

func (v Verdict) String() string {
	switch v {
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	default:
		return "error"
	}
}

// MarshalText renders the verdict for JSON output.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses a verdict name.
func (v *Verdict) UnmarshalText(b []byte) error {
	switch string(b) {
	case "feasible":
		*v = Feasible
	case "infeasible":
		*v = Infeasible
	case "error":
		*v = Error
	default:
		return fmt.Errorf("unknown verdict %q", b)
	}
	return nil
}

// ParseVerdict classifies raw solver output. Status lines ("s ...") are
// authoritative; otherwise a bare UNSAT/UNSATISFIABLE token on a non-comment
// line means infeasible and SAT/SATISFIABLE means feasible. Comment lines
// ("c ...") carry solver banners such as "c Kissat SAT Solver" and are never
// scanned. Anything else is an Error.
func ParseVerdict(raw string) Verdict {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "s ") {
			continue
		}
		switch strings.TrimSpace(line[2:]) {
		case "UNSATISFIABLE", "UNSAT":
			return Infeasible
		case "SATISFIABLE", "SAT":
			return Feasible
		default:
			// s UNKNOWN, s INDETERMINATE
			return Error
		}
	}

	var sat, unsat bool
	for _, line := range strings.Split(raw, "\n") {
		if isComment(line) {
			continue
		}
		for _, tok := range strings.Fields(line) {
			switch tok {
			case "UNSAT", "UNSATISFIABLE":
				unsat = true
			case "SAT", "SATISFIABLE":
				sat = true
			}
		}
	}
	switch {
	case unsat:
		return Infeasible
	case sat:
		return Feasible
	}
	return Error
}

func isComment(line string) bool {
	line = strings.TrimSpace(line)
	return line == "c" || strings.HasPrefix(line, "c ")
}

// Competition exit codes.
const (
	exitSat   = 10
	exitUnsat = 20
)

// verdictFromExit maps SAT competition exit codes to a verdict.
func verdictFromExit(code int) Verdict {
	switch code {
	case exitSat:
		return Feasible
	case exitUnsat:
		return Infeasible
	}
	return Error
}
