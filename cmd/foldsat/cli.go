package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/mcp"
	"github.com/hpungsan/foldsat/internal/ops"
	"github.com/hpungsan/foldsat/internal/web"
)

// stdout is where command results go; tests swap it.
var stdout io.Writer = os.Stdout

// newCLIApp creates the CLI application with all commands.
// env may be nil when only help or version output is needed.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "foldsat",
		Usage:   "Maximum-contact HP protein folding via SAT",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "Log every oracle call to stderr"},
		},
		Before: func(c *cli.Context) error {
			if env != nil && env.Logger == nil {
				env.Logger = newLogger(os.Stderr, c.Bool("verbose"))
			}
			return nil
		},
		Commands: []*cli.Command{
			boundCmd(),
			encodeCmd(env),
			solveCmd(env),
			benchCmd(env),
			compareCmd(env),
			genCmd(),
			runsCmd(env),
			reportCmd(env),
			exportCmd(env),
			importCmd(env),
			mcpCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newLogger returns a text logger; verbose lowers the level to debug.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func sequenceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "labels", Aliases: []string{"s"}, Usage: "Inline H/P labels (1 = H, 0 = P) instead of a file"},
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Name for an inline sequence"},
	}
}

// sequenceRef reads the sequence from the first argument or --labels.
func sequenceRef(c *cli.Context) ops.SequenceRef {
	return ops.SequenceRef{
		Path:   c.Args().First(),
		Labels: c.String("labels"),
		Name:   c.String("name"),
	}
}

func countEncodingFlag() cli.Flag {
	return &cli.StringFlag{Name: "count-encoding", Usage: "Counting rule file in the rules directory (default: config count_encoding)"}
}

func corpusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: "all", Usage: "Corpus subset: all|real|random"},
		&cli.IntFlag{Name: "min-len", Usage: "Minimum sequence length"},
		&cli.IntFlag{Name: "max-len", Usage: "Maximum sequence length, exclusive (0 = unbounded)"},
		&cli.StringSliceFlag{Name: "ignore", Usage: "Sequence names to skip"},
	}
}

func corpus(c *cli.Context) ops.Corpus {
	return ops.Corpus{
		Path:   c.Args().First(),
		Kind:   c.String("kind"),
		MinLen: c.Int("min-len"),
		MaxLen: c.Int("max-len"),
		Ignore: c.StringSlice("ignore"),
	}
}

// boundCmd creates the bound command.
func boundCmd() *cli.Command {
	return &cli.Command{
		Name:      "bound",
		Usage:     "Compute the contact upper bound of a sequence",
		ArgsUsage: "[sequence-file]",
		Flags: append(sequenceFlags(),
			&cli.IntSliceFlag{Name: "dims", Aliases: []string{"d"}, Usage: "Lattice dimensions (2, 3); repeatable"},
		),
		Action: func(c *cli.Context) error {
			output, err := ops.Bound(ops.BoundInput{
				Sequence: sequenceRef(c),
				Dims:     c.IntSlice("dims"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// encodeCmd creates the encode command.
func encodeCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Compile the formula for one contact objective",
		ArgsUsage: "[sequence-file]",
		Flags: append(sequenceFlags(),
			&cli.IntFlag{Name: "objective", Aliases: []string{"k"}, Required: true, Usage: "Contact count to encode"},
			&cli.IntFlag{Name: "dims", Aliases: []string{"d"}, Value: 2, Usage: "Lattice dimensions (2 or 3)"},
			&cli.IntFlag{Name: "variant", Usage: "Constraint rule variant"},
			countEncodingFlag(),
			&cli.BoolFlag{Name: "no-cache", Usage: "Re-encode even if a cached formula exists"},
		),
		Action: func(c *cli.Context) error {
			output, err := ops.Encode(c.Context, env, ops.EncodeInput{
				Sequence:      sequenceRef(c),
				Dims:          c.Int("dims"),
				Variant:       c.Int("variant"),
				CountEncoding: c.String("count-encoding"),
				Objective:     c.Int("objective"),
				NoCache:       c.Bool("no-cache"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// solveCmd creates the solve command.
func solveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "solve",
		Usage:     "Find the maximum contact count of a sequence",
		ArgsUsage: "[sequence-file]",
		Flags: append(sequenceFlags(),
			&cli.IntFlag{Name: "dims", Aliases: []string{"d"}, Value: 2, Usage: "Lattice dimensions (2 or 3)"},
			&cli.IntFlag{Name: "variant", Usage: "Constraint rule variant"},
			countEncodingFlag(),
			&cli.StringFlag{Name: "solver", Usage: "SAT solver (default: config default_solver)"},
			&cli.StringFlag{Name: "policy", Aliases: []string{"p"}, Usage: "Search policy: binary|linear|double-linear|double-binary"},
			&cli.BoolFlag{Name: "no-cache", Usage: "Re-encode every objective"},
			&cli.BoolFlag{Name: "track", Aliases: []string{"t"}, Usage: "Record the run in the CSV results and the run store"},
			&cli.IntFlag{Name: "repeats", Aliases: []string{"r"}, Usage: "Tracked repetitions (default: config repeats)"},
		),
		Action: func(c *cli.Context) error {
			output, err := ops.Solve(c.Context, env, ops.SolveInput{
				Sequence:      sequenceRef(c),
				Dims:          c.Int("dims"),
				Variant:       c.Int("variant"),
				CountEncoding: c.String("count-encoding"),
				Solver:        c.String("solver"),
				Policy:        c.String("policy"),
				NoCache:       c.Bool("no-cache"),
				Track:         c.Bool("track"),
				Repeats:       c.Int("repeats"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// benchCmd creates the bench command.
func benchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "Run every solver and policy combination over a corpus and record the runs",
		ArgsUsage: "<corpus-dir|sequence-file>",
		Flags: append(corpusFlags(),
			&cli.IntSliceFlag{Name: "dims", Aliases: []string{"d"}, Usage: "Lattice dimensions; repeatable (default: 2)"},
			&cli.IntSliceFlag{Name: "variant", Usage: "Constraint variants; repeatable (default: 0)"},
			&cli.StringSliceFlag{Name: "solver", Usage: "Solvers; repeatable (default: config default_solver)"},
			&cli.StringSliceFlag{Name: "policy", Aliases: []string{"p"}, Usage: "Policies; repeatable (default: all)"},
			&cli.IntFlag{Name: "repeats", Aliases: []string{"r"}, Usage: "Repetitions per combination (default: config repeats)"},
			&cli.BoolFlag{Name: "no-cache", Usage: "Re-encode every objective"},
		),
		Action: func(c *cli.Context) error {
			output, err := ops.Bench(c.Context, env, ops.BenchInput{
				Corpus:   corpus(c),
				Dims:     c.IntSlice("dims"),
				Variants: c.IntSlice("variant"),
				Solvers:  c.StringSlice("solver"),
				Policies: c.StringSlice("policy"),
				Repeats:  c.Int("repeats"),
				NoCache:  c.Bool("no-cache"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// compareCmd creates the compare command.
func compareCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Aliases:   []string{"validate"},
		Usage:     "Check that policies, constraint variants or counting encodings reach the same optimum over a corpus",
		ArgsUsage: "<corpus-dir|sequence-file>",
		Flags: append(corpusFlags(),
			&cli.StringFlag{Name: "by", Value: ops.CompareByPolicy, Usage: "What varies: policy|variant|count-encoding"},
			&cli.IntSliceFlag{Name: "dims", Aliases: []string{"d"}, Usage: "Lattice dimensions; repeatable (default: 2)"},
			&cli.IntSliceFlag{Name: "variant", Usage: "Constraint variants; repeatable with --by variant (default: 0 and 1), else one"},
			&cli.StringSliceFlag{Name: "count-encoding", Usage: "Counting rule files; repeatable with --by count-encoding (default: cc_a.bul and counter.bul), else one"},
			&cli.StringFlag{Name: "solver", Usage: "SAT solver (default: config default_solver)"},
			&cli.StringSliceFlag{Name: "policy", Aliases: []string{"p"}, Usage: "Policies; repeatable with --by policy (default: all), else one (default: linear)"},
			&cli.BoolFlag{Name: "no-cache", Usage: "Re-encode every objective"},
		),
		Action: func(c *cli.Context) error {
			output, err := ops.Compare(c.Context, env, ops.CompareInput{
				Corpus:         corpus(c),
				Dims:           c.IntSlice("dims"),
				By:             c.String("by"),
				Variants:       c.IntSlice("variant"),
				CountEncodings: c.StringSlice("count-encoding"),
				Solver:         c.String("solver"),
				Policies:       c.StringSlice("policy"),
				NoCache:        c.Bool("no-cache"),
			})
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(output); err != nil {
				return err
			}
			if output.Inconsistent > 0 {
				return cli.Exit(fmt.Sprintf("%d sequences disagree across %s settings", output.Inconsistent, output.By), 2)
			}
			return nil
		},
	}
}

// genCmd creates the gen command.
func genCmd() *cli.Command {
	return &cli.Command{
		Name:  "gen",
		Usage: "Generate random sequence files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Required: true, Usage: "Output directory"},
			&cli.IntFlag{Name: "length", Aliases: []string{"l"}, Required: true, Usage: "Sequence length"},
			&cli.IntFlag{Name: "count", Aliases: []string{"c"}, Value: 1, Usage: "Number of sequences"},
			&cli.Float64Flag{Name: "prob", Value: 0.5, Usage: "Probability of an H residue"},
			&cli.Int64Flag{Name: "seed", Usage: "Random seed (0 = time-based)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Gen(ops.GenInput{
				Dir:         c.String("dir"),
				Length:      c.Int("length"),
				Count:       c.Int("count"),
				Probability: c.Float64("prob"),
				Seed:        c.Int64("seed"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func runFilterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "sequence", Usage: "Filter by sequence name"},
		&cli.IntFlag{Name: "dims", Aliases: []string{"d"}, Usage: "Filter by dimensions"},
		&cli.IntFlag{Name: "variant", Usage: "Filter by constraint variant"},
		&cli.StringFlag{Name: "solver", Usage: "Filter by solver"},
		&cli.StringFlag{Name: "policy", Aliases: []string{"p"}, Usage: "Filter by policy"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum runs to return"},
	}
}

func runsInput(c *cli.Context) ops.RunsInput {
	input := ops.RunsInput{
		Sequence: c.String("sequence"),
		Dims:     c.Int("dims"),
		Solver:   c.String("solver"),
		Policy:   c.String("policy"),
		Limit:    c.Int("limit"),
	}
	if c.IsSet("variant") {
		v := c.Int("variant")
		input.Variant = &v
	}
	return input
}

// runsCmd creates the runs command and its subcommands.
func runsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect recorded runs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List runs, newest first",
				Flags: runFilterFlags(),
				Action: func(c *cli.Context) error {
					output, err := ops.ListRuns(env, runsInput(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a run and its oracle calls",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.GetRun(env, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a run",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteRun(env, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// reportCmd creates the report command.
func reportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Render recorded runs as Markdown or HTML",
		Flags: append(runFilterFlags(),
			&cli.StringFlag{Name: "title", Usage: "Report title"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: ops.FormatMarkdown, Usage: "Output format: markdown|html"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the report to this path"},
			&cli.BoolFlag{Name: "save", Usage: "Write the report under ~/.foldsat/reports"},
		),
		Action: func(c *cli.Context) error {
			output, err := ops.Report(env, ops.ReportInput{
				Filter: runsInput(c),
				Title:  c.String("title"),
				Format: c.String("format"),
				Path:   c.String("out"),
				Save:   c.Bool("save"),
			})
			if err != nil {
				return outputError(err)
			}
			if output.Content != "" {
				_, err := io.WriteString(stdout, output.Content)
				return err
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export runs to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Export file path (default: ~/.foldsat/reports/runs-<sequence|all>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "sequence", Usage: "Filter by sequence name"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportRuns(c.Context, env, ops.ExportInput{
				Path:     c.String("path"),
				Sequence: c.String("sequence"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import runs from a JSONL export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.ImportModeError), Usage: "Collision mode: error|skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ImportRuns(env, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the foldsat tools over MCP stdio",
		Action: func(c *cli.Context) error {
			if err := mcp.Run(env, Version); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browse recorded runs in a web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8765, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(env, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(srv, env.Logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var foldErr *errors.FoldError
	if stderrors.As(err, &foldErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", foldErr.Code, foldErr.Message), 1)
	}
	return cli.Exit(strings.TrimSpace(err.Error()), 1)
}
