package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("capture_list",
	mcp.WithDescription("List captures newest first. Video blobs are never included; hasVideo tells whether one exists."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Number of captures to skip")),
)

var rangeToolDef = mcp.NewTool("capture_range",
	mcp.WithDescription("List captures whose timestamp falls within [start, end], inclusive, in insertion order."),
	mcp.WithString("start", mcp.Required(), mcp.Description("RFC 3339 time, YYYY-MM-DD or epoch milliseconds")),
	mcp.WithString("end", mcp.Required(), mcp.Description("RFC 3339 time, YYYY-MM-DD (whole day) or epoch milliseconds")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Number of captures to skip")),
)

var statsToolDef = mcp.NewTool("capture_stats",
	mcp.WithDescription("Totals per emotion and per intensity band, the most common emotion and the mean intensity."),
	mcp.WithString("mode", mcp.Description("Color palette for the per-emotion rows"), mcp.Enum("normal", "xray")),
)

var traceToolDef = mcp.NewTool("capture_trace",
	mcp.WithDescription("Every capture placed back on the wheel as (x, y), oldest first, plus an SVG path through them."),
	mcp.WithNumber("radius", mcp.Description("Wheel radius in output units (default: configured wheel radius)")),
	mcp.WithString("mode", mcp.Description("Color palette"), mcp.Enum("normal", "xray")),
)

var exportToolDef = mcp.NewTool("capture_export",
	mcp.WithDescription("Write every capture to a JSON or CSV file. Defaults to <home>/exports."),
	mcp.WithString("path", mcp.Description("Destination file (.json or .csv)")),
	mcp.WithString("format", mcp.Description("Inferred from path when omitted"), mcp.Enum("json", "csv")),
	mcp.WithBoolean("include_video", mcp.Description("Embed base64 video blobs (json only)")),
)

var importToolDef = mcp.NewTool("capture_import",
	mcp.WithDescription("Import captures from a JSON export or a raw array of captures. A malformed file stores nothing."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .json file")),
)

var clearToolDef = mcp.NewTool("capture_clear",
	mcp.WithDescription("Irreversibly delete every capture."),
	mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true")),
)

var videoToolDef = mcp.NewTool("capture_video",
	mcp.WithDescription("Write a capture's recorded video to a file."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Capture id")),
	mcp.WithString("path", mcp.Description("Destination file (default <home>/exports/capture-<id>.webm)")),
)

var resolveWordToolDef = mcp.NewTool("emotion_resolve_word",
	mcp.WithDescription("Map a free-text word to a wheel category. Unknown words resolve to Joy."),
	mcp.WithString("word", mcp.Required(), mcp.Description("Word to resolve, e.g. \"furious\"")),
)

var resolvePointToolDef = mcp.NewTool("emotion_resolve_point",
	mcp.WithDescription("Map a pointer offset from the wheel center to a category and intensity. Points outside the wheel resolve to nothing."),
	mcp.WithNumber("x", mcp.Required(), mcp.Description("Horizontal offset from the center")),
	mcp.WithNumber("y", mcp.Required(), mcp.Description("Vertical offset from the center, downwards positive")),
)
