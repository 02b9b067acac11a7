package ops

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hpungsan/foldsat/internal/db"
	"github.com/hpungsan/foldsat/internal/errors"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError ImportMode = "error" // fail on any collision or bad line (atomic)
	ImportModeSkip  ImportMode = "skip"  // skip colliding ids and bad lines
)

// ImportInput contains parameters for the ImportRuns operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the ImportRuns operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one rejected line.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line int
	run  *db.Run
}

// ImportRuns loads runs from a JSONL export file. Records are inserted in
// one transaction; in error mode nothing is inserted if any line is bad or
// any id already exists.
func ImportRuns(env *Env, input ImportInput) (*ImportOutput, error) {
	if err := env.requireDB(); err != nil {
		return nil, err
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip")
	}
	if err := ValidatePath(input.Path, PathRead, []string{".jsonl"}, env.ReportsDir(), env.Config); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, importErrors := parseExportFile(file)

	seen := make(map[string]bool, len(records))
	toInsert := make([]*db.Run, 0, len(records))
	for _, rec := range records {
		exists, err := db.RunExists(env.DB, rec.run.ID)
		if err != nil {
			return nil, err
		}
		if exists || seen[rec.run.ID] {
			importErrors = append(importErrors, ImportError{
				Line:    rec.line,
				ID:      rec.run.ID,
				Code:    "ID_COLLISION",
				Message: fmt.Sprintf("run with id %q already exists", rec.run.ID),
			})
			continue
		}
		seen[rec.run.ID] = true
		toInsert = append(toInsert, rec.run)
	}

	out := &ImportOutput{Errors: importErrors}
	if out.Errors == nil {
		out.Errors = []ImportError{}
	}
	if input.Mode == ImportModeError && len(importErrors) > 0 {
		return out, nil
	}

	if err := db.InsertRuns(env.DB, toInsert); err != nil {
		return nil, err
	}
	out.Imported = len(toInsert)
	out.Skipped = len(importErrors)
	return out, nil
}

// parseExportFile reads run records, skipping the header line.
func parseExportFile(r io.Reader) ([]importRecord, []ImportError) {
	var (
		records     []importRecord
		parseErrors []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var header ExportHeader
		if err := json.Unmarshal(line, &header); err == nil && header.FoldsatExport {
			continue
		}

		var run db.Run
		if err := json.Unmarshal(line, &run); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if run.ID == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing id field",
			})
			continue
		}
		records = append(records, importRecord{line: lineNum, run: &run})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return records, parseErrors
}
