package mcp

import (
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/foldsat/internal/ops"
)

// KnownTypes lists all valid tool type names.
var KnownTypes = []string{"contacts", "runs"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"contacts_bound": {
		def:     boundToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBound },
	},
	"contacts_encode": {
		def:     encodeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEncode },
	},
	"contacts_solve": {
		def:     solveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSolve },
	},
	"contacts_compare": {
		def:     compareToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCompare },
	},
	"runs_list": {
		def:     runsListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunsList },
	},
	"runs_get": {
		def:     runsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunsGet },
	},
	"runs_report": {
		def:     runsReportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunsReport },
	},
	"runs_delete": {
		def:     runsDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunsDelete },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type from a tool name ("runs_list" → "runs").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server with the foldsat tools registered.
// Tools listed in disabled_tools or belonging to disabled_types are skipped.
func NewServer(env *ops.Env, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"foldsat",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(env)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(env.Config.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range env.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the MCP tools over stdio.
func Run(env *ops.Env, version string) error {
	return server.ServeStdio(NewServer(env, version))
}
