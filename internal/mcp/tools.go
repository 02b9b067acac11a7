package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Sequence arguments shared by the contacts tools.
func sequenceArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("path", mcp.Description("Sequence file (one line of 0/1). Mutually exclusive with labels.")),
		mcp.WithString("labels", mcp.Description("Inline sequence of 0 (polar) and 1 (hydrophobic).")),
		mcp.WithString("name", mcp.Description("Name for inline labels (default: inline).")),
	}
}

func countEncodingArg() mcp.ToolOption {
	return mcp.WithString("count_encoding", mcp.Description("Counting rule file in the rules directory (default from config)."))
}

func withSequence(name string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append(sequenceArgs(), opts...)...)
}

var boundToolDef = withSequence("contacts_bound",
	mcp.WithDescription("Upper bound on H-H contacts of a sequence on the 2D square or 3D cubic lattice. No solver is run."),
	mcp.WithArray("dims", mcp.Description("Dimensions to bound (2 and/or 3; default [2])."), mcp.WithNumberItems()),
)

var encodeToolDef = withSequence("contacts_encode",
	mcp.WithDescription("Compile the CNF formula asking whether a fold with at least `objective` contacts exists."),
	mcp.WithNumber("objective", mcp.Required(), mcp.Description("Contact count to encode."), mcp.Min(0)),
	mcp.WithNumber("dims", mcp.Description("2 or 3 (default 2).")),
	mcp.WithNumber("variant", mcp.Description("Constraint rule variant (default 0).")),
	countEncodingArg(),
	mcp.WithBoolean("no_cache", mcp.Description("Recompile even if a cached formula exists.")),
)

var solveToolDef = withSequence("contacts_solve",
	mcp.WithDescription("Find the maximum number of H-H contacts by searching objectives with a SAT solver."),
	mcp.WithNumber("dims", mcp.Description("2 or 3 (default 2).")),
	mcp.WithNumber("variant", mcp.Description("Constraint rule variant (default 0).")),
	countEncodingArg(),
	mcp.WithString("solver", mcp.Description("Solver name (default from config; gophersat and gini run in-process).")),
	mcp.WithString("policy", mcp.Description("Search policy."), mcp.Enum("binary", "linear", "double-linear", "double-binary")),
	mcp.WithBoolean("no_cache", mcp.Description("Recompile every formula.")),
	mcp.WithBoolean("track", mcp.Description("Record the run to CSV and the run store.")),
	mcp.WithNumber("repeats", mcp.Description("Tracked runs only: how many times to repeat.")),
)

var compareToolDef = mcp.NewTool("contacts_compare",
	mcp.WithDescription("Run each sequence under several policies, constraint variants or counting encodings and report whether they reach the same maximum. Encoding comparisons also report formula sizes at objective 1 and mean differences from the first setting."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Sequence file or directory of sequence files.")),
	mcp.WithString("by", mcp.Description("What varies (default policy)."), mcp.Enum("policy", "variant", "count-encoding")),
	mcp.WithString("kind", mcp.Description("Directory filter: all, real, random."), mcp.Enum("all", "real", "random")),
	mcp.WithNumber("min_len", mcp.Description("Minimum sequence length.")),
	mcp.WithNumber("max_len", mcp.Description("Maximum sequence length (exclusive).")),
	mcp.WithArray("dims", mcp.Description("Dimensions (default [2])."), mcp.WithNumberItems()),
	mcp.WithArray("variants", mcp.Description("by=variant: variants to compare (default [0, 1]). Otherwise at most one."), mcp.WithNumberItems()),
	mcp.WithArray("count_encodings", mcp.Description("by=count-encoding: counting rule files to compare (default [cc_a.bul, counter.bul]). Otherwise at most one."), mcp.WithStringItems()),
	mcp.WithString("solver", mcp.Description("Solver name (default from config).")),
	mcp.WithArray("policies", mcp.Description("by=policy: policies checked against linear (default all). Otherwise at most one (default linear)."), mcp.WithStringItems()),
)

var runsListToolDef = mcp.NewTool("runs_list",
	mcp.WithDescription("List stored runs, newest first."),
	mcp.WithString("sequence", mcp.Description("Filter by sequence name.")),
	mcp.WithNumber("dims", mcp.Description("Filter by dimension.")),
	mcp.WithNumber("variant", mcp.Description("Filter by variant.")),
	mcp.WithString("solver", mcp.Description("Filter by solver.")),
	mcp.WithString("policy", mcp.Description("Filter by policy.")),
	mcp.WithNumber("limit", mcp.Description("Max results (default 20, max 500).")),
)

var runsGetToolDef = mcp.NewTool("runs_get",
	mcp.WithDescription("Fetch one stored run with its probe trace."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ULID.")),
)

var runsReportToolDef = mcp.NewTool("runs_report",
	mcp.WithDescription("Render stored runs as a Markdown summary table per sequence."),
	mcp.WithString("title", mcp.Description("Report title.")),
	mcp.WithString("sequence", mcp.Description("Filter by sequence name.")),
	mcp.WithNumber("dims", mcp.Description("Filter by dimension.")),
	mcp.WithString("solver", mcp.Description("Filter by solver.")),
	mcp.WithString("policy", mcp.Description("Filter by policy.")),
	mcp.WithNumber("limit", mcp.Description("Max runs (default 20, max 500).")),
)

var runsDeleteToolDef = mcp.NewTool("runs_delete",
	mcp.WithDescription("Delete a stored run and its probes."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ULID.")),
	mcp.WithDestructiveHintAnnotation(true),
)
