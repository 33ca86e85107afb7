package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/ops"
	"github.com/hpungsan/moodtrace/internal/store"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store *store.Store
	cfg   *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, cfg *config.Config) *Handlers {
	return &Handlers{store: st, cfg: cfg}
}

// Request types for each tool

// ListRequest represents the arguments for capture_list.
type ListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// RangeRequest represents the arguments for capture_range.
type RangeRequest struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ModeRequest carries the palette selector shared by stats and trace.
type ModeRequest struct {
	Mode   string  `json:"mode,omitempty"`
	Radius float64 `json:"radius,omitempty"`
}

// ExportRequest represents the arguments for capture_export.
type ExportRequest struct {
	Path         string `json:"path,omitempty"`
	Format       string `json:"format,omitempty"`
	IncludeVideo bool   `json:"include_video,omitempty"`
}

// ImportRequest represents the arguments for capture_import.
type ImportRequest struct {
	Path string `json:"path"`
}

// ClearRequest represents the arguments for capture_clear.
type ClearRequest struct {
	Confirm bool `json:"confirm"`
}

// VideoRequest represents the arguments for capture_video.
type VideoRequest struct {
	ID   int64  `json:"id"`
	Path string `json:"path,omitempty"`
}

// ResolveWordRequest represents the arguments for emotion_resolve_word.
type ResolveWordRequest struct {
	Word string `json:"word"`
}

// ResolvePointRequest represents the arguments for emotion_resolve_point.
type ResolvePointRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// ResolvePointOutput is the result of emotion_resolve_point. Selection is nil
// for points outside the wheel.
type ResolvePointOutput struct {
	Inside    bool             `json:"inside"`
	Selection *wheel.Selection `json:"selection,omitempty"`
}

// Handler implementations

// HandleList handles the capture_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Timeline(ctx, h.store, ops.ListInput{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRange handles the capture_range tool call.
func (h *Handlers) HandleRange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RangeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	start, err := ops.ParseTime(input.Start)
	if err != nil {
		return errorResult(err), nil
	}
	end, err := ops.ParseRangeEnd(input.End)
	if err != nil {
		return errorResult(err), nil
	}
	if end.Before(start) {
		return errorResult(errors.NewInvalidRequest("end must not be before start")), nil
	}

	result, err := ops.List(ctx, h.store, ops.ListInput{
		Start:  &start,
		End:    &end,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStats handles the capture_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ModeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Stats(ctx, h.store, wheel.ParseMode(input.Mode))
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// TraceResult is the capture_trace payload.
type TraceResult struct {
	*ops.TraceOutput
	Path string `json:"path"`
}

// HandleTrace handles the capture_trace tool call.
func (h *Handlers) HandleTrace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ModeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Radius < 0 {
		return errorResult(errors.NewInvalidRequest("radius must be positive")), nil
	}
	radius := input.Radius
	if radius == 0 {
		radius = h.cfg.WheelRadius
	}

	trace, err := ops.Trace(ctx, h.store, radius, wheel.ParseMode(input.Mode))
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(TraceResult{TraceOutput: trace, Path: trace.SVGPath(radius, radius)})
}

// HandleExport handles the capture_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.store, h.cfg, ops.ExportInput{
		Path:         input.Path,
		Format:       ops.Format(input.Format),
		IncludeVideo: input.IncludeVideo,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the capture_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	result, err := ops.Import(ctx, h.store, h.cfg, ops.ImportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleClear handles the capture_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClearRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Clear(ctx, h.store, ops.ClearInput{Confirm: input.Confirm})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVideo handles the capture_video tool call.
func (h *Handlers) HandleVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VideoRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SaveVideo(ctx, h.store, h.cfg, ops.VideoInput{ID: input.ID, Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleResolveWord handles the emotion_resolve_word tool call.
func (h *Handlers) HandleResolveWord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResolveWordRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Word) == "" {
		return errorResult(errors.NewInvalidRequest("word is required")), nil
	}

	return successResult(wheel.New(h.cfg.WheelRadius).ResolveFromWord(input.Word))
}

// HandleResolvePoint handles the emotion_resolve_point tool call.
func (h *Handlers) HandleResolvePoint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResolvePointRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.X == nil || input.Y == nil {
		return errorResult(errors.NewInvalidRequest("x and y are required")), nil
	}

	sel, ok := wheel.New(h.cfg.WheelRadius).ResolveFromPointer(*input.X, *input.Y)
	out := ResolvePointOutput{Inside: ok}
	if ok {
		out.Selection = &sel
	}
	return successResult(out)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	tErr := errors.As(err)

	// Keep wrapper context ("items[2]: ...") around the coded message.
	message := tErr.Message
	if err != error(tErr) && tErr.Code != errors.ErrInternal {
		if prefix, ok := strings.CutSuffix(err.Error(), tErr.Error()); ok {
			message = prefix + tErr.Message
		}
	}

	errorObj := map[string]any{
		"code":    tErr.Code,
		"message": message,
		"status":  tErr.Status,
	}
	if tErr.Code != errors.ErrInternal && tErr.Details != nil {
		errorObj["details"] = tErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

