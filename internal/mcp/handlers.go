package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// SequenceArgs identifies the sequence of a contacts tool call.
type SequenceArgs struct {
	Path   string `json:"path,omitempty"`
	Labels string `json:"labels,omitempty"`
	Name   string `json:"name,omitempty"`
}

func (a SequenceArgs) ref() ops.SequenceRef {
	return ops.SequenceRef{Path: a.Path, Labels: a.Labels, Name: a.Name}
}

// BoundRequest represents the arguments for contacts_bound.
type BoundRequest struct {
	SequenceArgs
	Dims []int `json:"dims,omitempty"`
}

// EncodeRequest represents the arguments for contacts_encode.
type EncodeRequest struct {
	SequenceArgs
	Objective     int    `json:"objective"`
	Dims          int    `json:"dims,omitempty"`
	Variant       int    `json:"variant,omitempty"`
	CountEncoding string `json:"count_encoding,omitempty"`
	NoCache       bool   `json:"no_cache,omitempty"`
}

// SolveRequest represents the arguments for contacts_solve.
type SolveRequest struct {
	SequenceArgs
	Dims          int    `json:"dims,omitempty"`
	Variant       int    `json:"variant,omitempty"`
	CountEncoding string `json:"count_encoding,omitempty"`
	Solver        string `json:"solver,omitempty"`
	Policy        string `json:"policy,omitempty"`
	NoCache       bool   `json:"no_cache,omitempty"`
	Track         bool   `json:"track,omitempty"`
	Repeats       int    `json:"repeats,omitempty"`
}

// CompareRequest represents the arguments for contacts_compare.
type CompareRequest struct {
	Path           string   `json:"path"`
	By             string   `json:"by,omitempty"`
	Kind           string   `json:"kind,omitempty"`
	MinLen         int      `json:"min_len,omitempty"`
	MaxLen         int      `json:"max_len,omitempty"`
	Dims           []int    `json:"dims,omitempty"`
	Variants       []int    `json:"variants,omitempty"`
	CountEncodings []string `json:"count_encodings,omitempty"`
	Solver         string   `json:"solver,omitempty"`
	Policies       []string `json:"policies,omitempty"`
}

// RunsListRequest represents the arguments for runs_list.
type RunsListRequest struct {
	Sequence string `json:"sequence,omitempty"`
	Dims     int    `json:"dims,omitempty"`
	Variant  *int   `json:"variant,omitempty"`
	Solver   string `json:"solver,omitempty"`
	Policy   string `json:"policy,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (r RunsListRequest) input() ops.RunsInput {
	return ops.RunsInput{
		Sequence: r.Sequence,
		Dims:     r.Dims,
		Variant:  r.Variant,
		Solver:   r.Solver,
		Policy:   r.Policy,
		Limit:    r.Limit,
	}
}

// RunsReportRequest represents the arguments for runs_report.
type RunsReportRequest struct {
	RunsListRequest
	Title string `json:"title,omitempty"`
}

// IDRequest represents the arguments for runs_get and runs_delete.
type IDRequest struct {
	ID string `json:"id"`
}

// HandleBound handles the contacts_bound tool.
func (h *Handlers) HandleBound(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[BoundRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Bound(ops.BoundInput{Sequence: args.ref(), Dims: args.Dims})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleEncode handles the contacts_encode tool.
func (h *Handlers) HandleEncode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[EncodeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Encode(ctx, h.env, ops.EncodeInput{
		Sequence:      args.ref(),
		Dims:          args.Dims,
		Variant:       args.Variant,
		CountEncoding: args.CountEncoding,
		Objective:     args.Objective,
		NoCache:       args.NoCache,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSolve handles the contacts_solve tool.
func (h *Handlers) HandleSolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[SolveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Solve(ctx, h.env, ops.SolveInput{
		Sequence:      args.ref(),
		Dims:          args.Dims,
		Variant:       args.Variant,
		CountEncoding: args.CountEncoding,
		Solver:        args.Solver,
		Policy:        args.Policy,
		NoCache:       args.NoCache,
		Track:         args.Track,
		Repeats:       args.Repeats,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCompare handles the contacts_compare tool.
func (h *Handlers) HandleCompare(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[CompareRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Compare(ctx, h.env, ops.CompareInput{
		Corpus: ops.Corpus{
			Path:   args.Path,
			Kind:   args.Kind,
			MinLen: args.MinLen,
			MaxLen: args.MaxLen,
		},
		Dims:           args.Dims,
		By:             args.By,
		Variants:       args.Variants,
		CountEncodings: args.CountEncodings,
		Solver:         args.Solver,
		Policies:       args.Policies,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRunsList handles the runs_list tool.
func (h *Handlers) HandleRunsList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[RunsListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListRuns(h.env, args.input())
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRunsGet handles the runs_get tool.
func (h *Handlers) HandleRunsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetRun(h.env, args.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRunsReport handles the runs_report tool. The report is returned
// inline; nothing is written to disk.
func (h *Handlers) HandleRunsReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[RunsReportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Report(h.env, ops.ReportInput{
		Filter: args.input(),
		Title:  args.Title,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRunsDelete handles the runs_delete tool.
func (h *Handlers) HandleRunsDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteRun(h.env, args.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var foldErr *errors.FoldError
	if stderrors.As(err, &foldErr) {
		errorObj := map[string]any{
			"code":    foldErr.Code,
			"message": foldErr.Message,
		}
		// Internal details may carry SQL errors or paths
		if foldErr.Code != errors.ErrInternal && foldErr.Details != nil {
			errorObj["details"] = foldErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
