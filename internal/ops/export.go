package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/foldsat/internal/db"
	"github.com/hpungsan/foldsat/internal/errors"
)

// ExportSchemaVersion is written in the header line of every export file.
const ExportSchemaVersion = "1"

// ExportInput contains parameters for the ExportRuns operation.
type ExportInput struct {
	Path     string // optional, default: <base>/reports/runs-<sequence|all>-<timestamp>.jsonl
	Sequence string // optional filter
}

// ExportOutput contains the result of the ExportRuns operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	FoldsatExport bool   `json:"_foldsat_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportRuns writes stored runs, probes included, to a JSONL file. The
// file is replaced atomically.
func ExportRuns(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	if err := env.requireDB(); err != nil {
		return nil, err
	}
	now := time.Now()

	path := input.Path
	if path == "" {
		name := "all"
		if input.Sequence != "" {
			name = SanitizeForFilename(input.Sequence)
		}
		path = filepath.Join(env.ReportsDir(), fmt.Sprintf("runs-%s-%s.jsonl", name, now.Format("2006-01-02T150405")))
	}
	// Default paths are validated too; the sequence name is user input.
	if err := ValidatePath(path, PathWrite, []string{".jsonl"}, env.ReportsDir(), env.Config); err != nil {
		return nil, err
	}

	runs, err := db.ListRuns(env.DB, db.RunFilter{Sequence: input.Sequence})
	if err != nil {
		return nil, err
	}

	count := 0
	err = writeAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		if err := enc.Encode(ExportHeader{FoldsatExport: true, SchemaVersion: ExportSchemaVersion, ExportedAt: now.Unix()}); err != nil {
			return errors.NewInternal(err)
		}
		// Oldest first so an import replays runs in creation order.
		for i := len(runs) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				return errors.NewInternal(fmt.Errorf("export interrupted: %w", err))
			}
			full, err := db.GetRun(env.DB, runs[i].ID)
			if err != nil {
				return err
			}
			if err := enc.Encode(full); err != nil {
				return errors.NewInternal(err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{Path: path, Count: count, ExportedAt: now.Unix()}, nil
}
