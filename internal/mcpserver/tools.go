package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

var resolveSelectionTool = mcp.NewTool("resolve_selection",
	mcp.WithDescription("Resolve a page query string to the selected images, the valid options for every dimension and the canonical URL."),
	mcp.WithString("query",
		mcp.Description(`Page query such as "?modela|t12|". Empty selects the page default.`),
	),
)

var selectValueTool = mcp.NewTool("select_value",
	mcp.WithDescription("Change one dimension of a selection, repairing deeper dimensions that no longer exist, and return the new query and view."),
	mcp.WithString("query",
		mcp.Description("Current page query string. Empty starts from the page default."),
	),
	mcp.WithNumber("depth",
		mcp.Required(),
		mcp.Description("Dimension to change, starting at 0"),
	),
	mcp.WithString("value",
		mcp.Required(),
		mcp.Description("New value for the dimension; must be one of its current options"),
	),
)

var stepAnimationTool = mcp.NewTool("step_animation",
	mcp.WithDescription("Step the animated dimension forwards or backwards, wrapping at the ends. Returns every intermediate frame."),
	mcp.WithString("query",
		mcp.Description("Current page query string. Empty starts from the page default."),
	),
	mcp.WithNumber("dir",
		mcp.Description("Frames per step, usually 1 or -1 (default 1)"),
	),
	mcp.WithNumber("count",
		mcp.Description("Number of steps to take (default 1, at most 1000)"),
	),
)

var listDimensionsTool = mcp.NewTool("list_dimensions",
	mcp.WithDescription("List the page dimensions with their names and key lists."),
)
