package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/ops"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "timeline", "stats", "trace"
	Mode    wheel.Mode
}

// XRay reports whether the alternate palette is active.
func (p PageData) XRay() bool { return p.Mode == wheel.ModeXRay }

// TimelinePageData is the template data for the timeline page.
type TimelinePageData struct {
	PageData
	Items      []ops.Summary
	Pagination ops.Pagination
	From       string
	To         string
}

// DetailPageData is the template data for the capture detail page.
type DetailPageData struct {
	PageData
	Capture        *capture.Capture
	TranscriptHTML template.HTML
	Color          string
}

// StatsPageData is the template data for the statistics page.
type StatsPageData struct {
	PageData
	Stats *ops.StatsOutput
}

// TracePageData is the template data for the trace page and SVG.
type TracePageData struct {
	PageData
	Size   float64
	Center float64
	Radius float64
	Spokes []Spoke
	Path   string
	Points []ops.TracePoint
}

// Spoke is a category axis drawn on the wheel.
type Spoke struct {
	Name   string
	Color  string
	X, Y   float64
	LabelX float64
	LabelY float64
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *slog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *slog.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"offset":     func(c, v float64) float64 { return c + v },
		"formatTime": formatTime,
		"percent":    percent,
		"color":      wheel.Color,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"timeline": "timeline.html",
		"detail":   "detail.html",
		"stats":    "stats.html",
		"trace":    "trace.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{templates: templates, version: version, logger: logger}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderBlock(w, http.StatusOK, name, "layout", "text/html; charset=utf-8", data)
}

// renderBlock renders a specific named block from a page template.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block, contentType string, data any) {
	t, ok := r.templates[page]
	if !ok {
		r.logger.Error("template not found", "template", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution error", "template", page, "block", block, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	tErr := errors.As(err)
	status := tErr.Status
	if status >= 500 {
		r.logger.Error("request failed", "path", req.URL.Path, "code", tErr.Code, "error", err)
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(tErr.Code),
				"message": tErr.Message,
				"status":  status,
			},
		})
		return
	}

	r.renderBlock(w, status, "error", "layout", "text/html; charset=utf-8", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    tErr.Message,
	})
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json") || req.URL.Query().Get("format") == "json"
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts a transcript to HTML using goldmark. Raw HTML in the
// transcript is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats epoch milliseconds as "2006-01-02 15:04:05" local time.
func formatTime(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// traceData lays the trace out on a square canvas of the given size.
func traceData(page PageData, trace *ops.TraceOutput, size float64) TracePageData {
	center := size / 2
	data := TracePageData{
		PageData: page,
		Size:     size,
		Center:   center,
		Radius:   trace.Radius,
		Path:     trace.SVGPath(center, center),
		Points:   trace.Points,
	}
	for _, cat := range wheel.Categories() {
		rad := cat.Angle * math.Pi / 180
		data.Spokes = append(data.Spokes, Spoke{
			Name:   cat.Name,
			Color:  cat.ColorFor(page.Mode),
			X:      center + math.Cos(rad)*trace.Radius,
			Y:      center + math.Sin(rad)*trace.Radius,
			LabelX: center + math.Cos(rad)*(trace.Radius+18),
			LabelY: center + math.Sin(rad)*(trace.Radius+18),
		})
	}
	return data
}
