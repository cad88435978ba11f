package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stepItems = mcp.Items(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"capability":  map[string]any{"type": "string"},
		"params":      map[string]any{"type": "object"},
		"output_name": map[string]any{"type": "string"},
		"condition":   map[string]any{"type": "string"},
	},
	"required": []string{"capability"},
})

var numberItems = mcp.Items(map[string]any{"type": "number"})

var registerToolDef = mcp.NewTool("pattern_register",
	mcp.WithDescription("Register a command pattern. Placeholders like {name} capture variables; actions is the ordered capability chain to run on an exact match."),
	mcp.WithString("pattern", mcp.Required(), mcp.Description("Template, e.g. \"ping {name} {message}\"")),
	mcp.WithString("description", mcp.Description("What the command does")),
	mcp.WithString("scope", mcp.Description("Visibility scope (default: universal scope)")),
	mcp.WithArray("context_tags", mcp.Description("Tags the request context must carry"), mcp.WithStringItems()),
	mcp.WithString("execution_mode_hint", mcp.Description("Opaque hint passed through to the executor")),
	mcp.WithArray("required_capabilities", mcp.Description("Default: capabilities named by actions"), mcp.WithStringItems()),
	mcp.WithArray("actions", mcp.Description("Action chain; params may use {{variable}} and {{output.path}} tokens"), stepItems),
	mcp.WithNumber("priority", mcp.Description("Lower wins ties (default from config)")),
	mcp.WithBoolean("enabled", mcp.Description("Default: true")),
	mcp.WithArray("embedding", mcp.Description("Precomputed embedding vector"), numberItems),
)

var getToolDef = mcp.NewTool("pattern_get",
	mcp.WithDescription("Fetch one pattern by ID."),
	mcp.WithString("id", mcp.Required()),
	mcp.WithBoolean("include_deleted"),
)

var listToolDef = mcp.NewTool("pattern_list",
	mcp.WithDescription("List patterns ordered by scope then priority."),
	mcp.WithString("scope", mcp.Description("Only patterns in this scope")),
	mcp.WithBoolean("include_disabled"),
	mcp.WithBoolean("include_deleted"),
	mcp.WithNumber("limit", mcp.Description("Default 20, max 100")),
	mcp.WithNumber("offset"),
)

var updateToolDef = mcp.NewTool("pattern_update",
	mcp.WithDescription("Update the editable fields of a pattern. Omitted fields are unchanged; the template and scope are fixed."),
	mcp.WithString("id", mcp.Required()),
	mcp.WithString("description"),
	mcp.WithArray("context_tags", mcp.WithStringItems()),
	mcp.WithString("execution_mode_hint"),
	mcp.WithArray("required_capabilities", mcp.WithStringItems()),
	mcp.WithArray("actions", stepItems),
	mcp.WithNumber("priority"),
	mcp.WithBoolean("enabled"),
	mcp.WithArray("embedding", numberItems),
	mcp.WithBoolean("reembed", mcp.Description("Recompute the embedding with the configured provider")),
)

var enableToolDef = mcp.NewTool("pattern_enable",
	mcp.WithDescription("Make a pattern eligible for resolution."),
	mcp.WithString("id", mcp.Required()),
)

var disableToolDef = mcp.NewTool("pattern_disable",
	mcp.WithDescription("Exclude a pattern from resolution without deleting it."),
	mcp.WithString("id", mcp.Required()),
)

var priorityToolDef = mcp.NewTool("pattern_priority",
	mcp.WithDescription("Set a pattern's priority. Lower values win ties."),
	mcp.WithString("id", mcp.Required()),
	mcp.WithNumber("priority", mcp.Required()),
)

var deleteToolDef = mcp.NewTool("pattern_delete",
	mcp.WithDescription("Soft-delete a pattern. Its traces are kept."),
	mcp.WithString("id", mcp.Required()),
)

var purgeToolDef = mcp.NewTool("pattern_purge",
	mcp.WithDescription("Permanently remove soft-deleted patterns."),
	mcp.WithNumber("older_than_days", mcp.Description("Only patterns deleted more than N days ago")),
)

var importToolDef = mcp.NewTool("pattern_import",
	mcp.WithDescription("Import patterns from a YAML catalog."),
	mcp.WithString("path", mcp.Required()),
	mcp.WithString("mode", mcp.Enum("error", "skip"), mcp.Description("error: all-or-nothing (default); skip: skip entries that fail")),
)

var exportToolDef = mcp.NewTool("pattern_export",
	mcp.WithDescription("Export live patterns to a YAML catalog."),
	mcp.WithString("path", mcp.Description("Default: ~/.cmdrouter/exports/<scope>-<timestamp>.yaml")),
	mcp.WithString("scope"),
)

var resolveToolDef = mcp.NewTool("router_resolve",
	mcp.WithDescription("Resolve a raw request to ranked pattern matches. Exact matches carry extracted variables and a bound action plan."),
	mcp.WithString("text", mcp.Required()),
	mcp.WithString("scope", mcp.Description("Caller's scope; universal patterns are always visible")),
	mcp.WithArray("context_tags", mcp.WithStringItems()),
	mcp.WithArray("embedding", numberItems),
)

var recordToolDef = mcp.NewTool("trace_record",
	mcp.WithDescription("Append an execution trace. Bumps the matched pattern's usage counters."),
	mcp.WithString("input_request", mcp.Required()),
	mcp.WithString("matched_pattern_id"),
	mcp.WithString("pattern_text"),
	mcp.WithObject("extracted_variables"),
	mcp.WithString("match_type"),
	mcp.WithArray("steps", mcp.Description("Per-step trace from the executor")),
	mcp.WithString("result_summary"),
	mcp.WithBoolean("success", mcp.Required()),
	mcp.WithString("error_message"),
	mcp.WithArray("referenced_entities", mcp.WithStringItems()),
	mcp.WithArray("embedding", numberItems),
	mcp.WithString("scope"),
	mcp.WithString("actor_id"),
	mcp.WithNumber("duration_ms"),
	mcp.WithNumber("resource_units_used"),
)

var traceGetToolDef = mcp.NewTool("trace_get",
	mcp.WithDescription("Fetch one trace entry by ID."),
	mcp.WithString("id", mcp.Required()),
)

var traceListToolDef = mcp.NewTool("trace_list",
	mcp.WithDescription("List trace entries newest first."),
	mcp.WithString("pattern_id"),
	mcp.WithString("scope"),
	mcp.WithBoolean("success"),
	mcp.WithNumber("limit"),
	mcp.WithNumber("offset"),
)

var recallToolDef = mcp.NewTool("trace_recall",
	mcp.WithDescription("Search successful past executions visible to a scope."),
	mcp.WithString("mode", mcp.Enum("recent", "textual", "semantic")),
	mcp.WithString("scope"),
	mcp.WithArray("entities", mcp.WithStringItems(), mcp.Description("Only entries referencing all of these")),
	mcp.WithString("text"),
	mcp.WithArray("embedding", numberItems),
	mcp.WithNumber("min_similarity"),
	mcp.WithNumber("limit"),
)
