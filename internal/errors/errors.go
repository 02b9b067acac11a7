package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a foldsat error code.
type ErrorCode string

const (
	ErrFormat              ErrorCode = "FORMAT_ERROR"          // malformed sequence or formula
	ErrOracle              ErrorCode = "ORACLE_ERROR"          // unclassifiable solver output
	ErrCacheStale          ErrorCode = "CACHE_STALE"           // never raised automatically
	ErrExternalToolFailure ErrorCode = "EXTERNAL_TOOL_FAILURE" // missing binary or bad exit
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrInternal            ErrorCode = "INTERNAL"
)

// FoldError represents a structured error with code and details.
type FoldError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *FoldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *FoldError) Unwrap() error {
	return e.Err
}

// NewFormat creates an error for a malformed sequence or formula file.
func NewFormat(path, msg string) *FoldError {
	return &FoldError{
		Code:    ErrFormat,
		Message: fmt.Sprintf("%s: %s", path, msg),
		Details: map[string]any{"path": path},
	}
}

// NewOracle creates an error for solver output that is neither SAT nor UNSAT.
// The raw output is kept in Details so the operator can inspect it.
func NewOracle(solver string, objective int, output string) *FoldError {
	return &FoldError{
		Code:    ErrOracle,
		Message: fmt.Sprintf("solver %s gave no verdict at objective %d", solver, objective),
		Details: map[string]any{
			"solver":    solver,
			"objective": objective,
			"output":    truncate(output, 512),
		},
	}
}

// NewCacheStale documents a formula cache entry the caller knows is outdated.
// foldsat never detects staleness itself; rerun with caching disabled.
func NewCacheStale(path string) *FoldError {
	return &FoldError{
		Code:    ErrCacheStale,
		Message: fmt.Sprintf("cached formula %s is stale; re-encode without cache", path),
		Details: map[string]any{"path": path},
	}
}

// NewExternalToolFailure creates an error for a subprocess that could not run
// or exited unexpectedly. The command line is part of the message.
func NewExternalToolFailure(name string, args []string, err error, output string) *FoldError {
	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))
	msg := fmt.Sprintf("%s: %v", cmdline, err)
	return &FoldError{
		Code:    ErrExternalToolFailure,
		Message: msg,
		Details: map[string]any{
			"command": cmdline,
			"output":  truncate(output, 512),
		},
		Err: err,
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *FoldError {
	return &FoldError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewNotFound creates an error for a missing run or file.
func NewNotFound(identifier string) *FoldError {
	return &FoldError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *FoldError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &FoldError{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is a FoldError with the given code.
func Is(err error, code ErrorCode) bool {
	var fErr *FoldError
	if stderrors.As(err, &fErr) {
		return fErr.Code == code
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
