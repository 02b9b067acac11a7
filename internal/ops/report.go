package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/report"
)

// Report formats
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ReportInput contains parameters for the Report operation.
type ReportInput struct {
	Filter RunsInput
	Title  string // default: "foldsat runs"
	Format string // markdown (default) or html
	Path   string // write here; "" returns the content inline unless Save
	Save   bool   // write to <base>/reports/report-<timestamp>.<ext> when Path is empty
}

// ReportOutput contains the result of the Report operation.
type ReportOutput struct {
	Runs    int    `json:"runs"`
	Format  string `json:"format"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
}

// Report renders stored runs as Markdown or HTML.
func Report(env *Env, input ReportInput) (*ReportOutput, error) {
	if err := env.requireDB(); err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatHTML {
		return nil, errors.NewInvalidRequest("format must be one of: markdown, html")
	}
	title := input.Title
	if strings.TrimSpace(title) == "" {
		title = "foldsat runs"
	}

	runs, err := ListRuns(env, input.Filter)
	if err != nil {
		return nil, err
	}

	content := report.Markdown(title, runs.Items)
	ext := ".md"
	if format == FormatHTML {
		content, err = report.HTML(content)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		ext = ".html"
	}

	out := &ReportOutput{Runs: len(runs.Items), Format: format}

	path := input.Path
	if path == "" && input.Save {
		path = filepath.Join(env.ReportsDir(), fmt.Sprintf("report-%s%s", time.Now().Format("2006-01-02T150405"), ext))
	}
	if path == "" {
		out.Content = content
		return out, nil
	}

	if err := ValidatePath(path, PathWrite, []string{ext}, env.ReportsDir(), env.Config); err != nil {
		return nil, err
	}
	err = writeAtomic(path, func(f *os.File) error {
		if _, err := f.WriteString(content); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Path = path
	return out, nil
}
