// Package report renders stored runs as Markdown tables and HTML.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/foldsat/internal/db"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders one table per sequence followed by a per-policy summary.
func Markdown(title string, runs []db.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if len(runs) == 0 {
		b.WriteString("No runs recorded.\n")
		return b.String()
	}

	bySeq := make(map[string][]db.Run)
	var names []string
	for _, r := range runs {
		if _, ok := bySeq[r.Sequence]; !ok {
			names = append(names, r.Sequence)
		}
		bySeq[r.Sequence] = append(bySeq[r.Sequence], r)
	}
	sort.Strings(names)

	for _, name := range names {
		group := bySeq[name]
		fmt.Fprintf(&b, "## %s\n\n", name)
		fmt.Fprintf(&b, "Length %d, labels `%s`.\n\n", group[0].Length, group[0].Labels)
		b.WriteString("| dims | variant | solver | policy | contacts | bound | queries | solve (s) | encode (s) | variables | clauses | run |\n")
		b.WriteString("|---:|---:|---|---|---:|---:|---:|---:|---:|---:|---:|---|\n")
		for _, r := range group {
			fmt.Fprintf(&b, "| %d | %d | %s | %s | %s | %d | %d | %s | %s | %s | %s | `%s` |\n",
				r.Dims, r.Variant, r.Solver, r.Policy,
				contacts(r), r.UpperBound, r.Queries,
				seconds(r.TotalSolveNS), seconds(r.TotalEncodeNS),
				optInt(r.Variables), optInt(r.Clauses), r.ID,
			)
		}
		b.WriteString("\n")
	}

	writePolicySummary(&b, runs)
	return b.String()
}

// writePolicySummary averages solve time per policy over successful runs.
func writePolicySummary(b *strings.Builder, runs []db.Run) {
	type agg struct {
		n       int
		solveNS int64
		queries int
	}
	stats := make(map[string]*agg)
	var policies []string
	for _, r := range runs {
		if r.ErrorCode != "" {
			continue
		}
		a, ok := stats[r.Policy]
		if !ok {
			a = &agg{}
			stats[r.Policy] = a
			policies = append(policies, r.Policy)
		}
		a.n++
		a.solveNS += r.TotalSolveNS
		a.queries += r.Queries
	}
	if len(policies) == 0 {
		return
	}
	sort.Strings(policies)

	b.WriteString("## Policies\n\n")
	b.WriteString("| policy | runs | mean solve (s) | mean queries |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, p := range policies {
		a := stats[p]
		fmt.Fprintf(b, "| %s | %d | %s | %.1f |\n",
			p, a.n, seconds(a.solveNS/int64(a.n)), float64(a.queries)/float64(a.n))
	}
	b.WriteString("\n")
}

// HTML converts Markdown output to an HTML fragment.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

func contacts(r db.Run) string {
	switch {
	case r.ErrorCode != "":
		return r.ErrorCode
	case r.MaxContacts < 0:
		return "none"
	}
	return fmt.Sprintf("%d", r.MaxContacts)
}

func seconds(ns int64) string {
	return fmt.Sprintf("%.3f", time.Duration(ns).Seconds())
}

func optInt(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}
