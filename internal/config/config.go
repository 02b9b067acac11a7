package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SolverConfig describes how to invoke one external SAT solver.
// The formula path is appended after Args.
type SolverConfig struct {
	Binary string   `json:"binary"`
	Args   []string `json:"args,omitempty"`
}

// Config holds application configuration.
// Every component receives it (or the part it needs) explicitly.
type Config struct {
	// Compiler is the fact-to-CNF compiler binary (bule2).
	Compiler string `json:"compiler"`

	// RulesDir holds the constraint and counting rule files.
	RulesDir string `json:"rules_dir"`

	// CountEncoding is the counting rule file appended after the constraint rules
	// (e.g. "cc_a.bul" or "counter.bul").
	CountEncoding string `json:"count_encoding"`

	// ModelsDir is the root of the formula cache (bul/ and cnf/ subdirectories).
	ModelsDir string `json:"models_dir"`

	// ResultsDir receives one CSV file per (sequence, geometry, variant).
	ResultsDir string `json:"results_dir"`

	// DefaultSolver is used when a command does not name one.
	DefaultSolver string `json:"default_solver"`

	// Solvers maps solver names to their invocation. Names not listed here are
	// run as a binary of the same name with no extra arguments, except the
	// in-process backends "gophersat" and "gini".
	Solvers map[string]SolverConfig `json:"solvers,omitempty"`

	// SolverTimeoutSec bounds a single solver call. 0 disables the timeout.
	// An expired call is classified as an oracle error, never as UNSAT.
	SolverTimeoutSec int `json:"solver_timeout_sec,omitempty"`

	// Repeats is how many times a tracked solve is repeated per combination.
	Repeats int `json:"repeats"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes excludes every MCP tool of a type ("contacts", "runs").
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// AllowedPaths are extra absolute directories that report and export
	// files may be written directly into, besides <base>/reports.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on report, export and
	// import paths. Symlinks are still rejected.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Compiler:      "bule2",
		RulesDir:      "bule",
		CountEncoding: "cc_a.bul",
		ModelsDir:     "models",
		ResultsDir:    filepath.Join("results", "encoding"),
		DefaultSolver: "kissat",
		Solvers: map[string]SolverConfig{
			"kissat":        {Binary: "kissat", Args: []string{"-q"}},
			"cadical":       {Binary: "cadical", Args: []string{"-q"}},
			"cryptominisat": {Binary: "cryptominisat5", Args: []string{"--verb", "0"}},
			"glucose":       {Binary: "glucose", Args: []string{"-verb=0"}},
			"maplesat":      {Binary: "maplesat", Args: []string{"-verb=0"}},
		},
		Repeats: 1,
	}
}

// SolverTimeout returns the per-call solver timeout (0 = none).
func (c *Config) SolverTimeout() time.Duration {
	if c.SolverTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.SolverTimeoutSec) * time.Second
}

// Solver returns the invocation for name, falling back to a bare binary.
func (c *Config) Solver(name string) SolverConfig {
	if sc, ok := c.Solvers[name]; ok && sc.Binary != "" {
		return sc
	}
	return SolverConfig{Binary: name}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.foldsat.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.foldsat) and repo (.foldsat) directories.
// Repo config is found by walking upward from startDir to find the nearest .foldsat/config.json.
// Repo config takes precedence for scalar values; arrays and solver maps are merged.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .foldsat/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".foldsat", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated;
// solver entries from overlay replace base entries of the same name.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Compiler = firstNonEmpty(overlay.Compiler, base.Compiler)
	result.RulesDir = firstNonEmpty(overlay.RulesDir, base.RulesDir)
	result.CountEncoding = firstNonEmpty(overlay.CountEncoding, base.CountEncoding)
	result.ModelsDir = firstNonEmpty(overlay.ModelsDir, base.ModelsDir)
	result.ResultsDir = firstNonEmpty(overlay.ResultsDir, base.ResultsDir)
	result.DefaultSolver = firstNonEmpty(overlay.DefaultSolver, base.DefaultSolver)

	result.SolverTimeoutSec = overlay.SolverTimeoutSec
	if result.SolverTimeoutSec == 0 {
		result.SolverTimeoutSec = base.SolverTimeoutSec
	}

	result.Repeats = overlay.Repeats
	if result.Repeats == 0 {
		result.Repeats = base.Repeats
	}

	if len(base.Solvers)+len(overlay.Solvers) > 0 {
		result.Solvers = make(map[string]SolverConfig, len(base.Solvers)+len(overlay.Solvers))
		for name, sc := range base.Solvers {
			result.Solvers[name] = sc
		}
		for name, sc := range overlay.Solvers {
			result.Solvers[name] = sc
		}
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	return result
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
