package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/foldsat/internal/config"
	"github.com/hpungsan/foldsat/internal/db"
	"github.com/hpungsan/foldsat/internal/mcp"
	"github.com/hpungsan/foldsat/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	switch args[1] {
	case "--help", "-h", "--version", "-v", "help":
		return true
	}
	return false
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   __       _     _           _
  / _| ___ | | __| |___  __ _| |_
 | |_ / _ \| |/ _' / __|/ _' | __|
 |  _| (_) | | (_| \__ \ (_| | |_
 |_|  \___/|_|\__,_|___/\__,_|\__|

  Maximum-contact HP folding via SAT

  Usage: foldsat <command> [options]
         foldsat --help

  MCP server mode requires piped input.`)
}

// baseDir returns $FOLDSAT_HOME or ~/.foldsat.
func baseDir() (string, error) {
	if dir := os.Getenv("FOLDSAT_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".foldsat"), nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	base, err := baseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	database, err := db.Init(base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadWithRepo(base, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	env := &ops.Env{
		DB:      database,
		Config:  cfg,
		BaseDir: base,
	}

	// Piped stdin with no command → MCP server
	if len(os.Args) < 2 {
		env.Logger = newLogger(os.Stderr, false)
		if err := mcp.Run(env, Version); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := newCLIApp(env).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode keeps the code of a cli.Exit error; anything else exits 1.
func exitCode(err error) int {
	var coder cli.ExitCoder
	if stderrors.As(err, &coder) && coder.ExitCode() != 0 {
		return coder.ExitCode()
	}
	return 1
}
