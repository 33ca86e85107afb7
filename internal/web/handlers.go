package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/ops"
	"github.com/hpungsan/moodtrace/internal/store"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// traceSize is the SVG canvas edge; the wheel leaves room for labels.
const traceSize = 400

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *store.Store
	cfg      *config.Config
	renderer *Renderer
}

func (h *Handlers) page(r *http.Request, title, nav string) PageData {
	return PageData{
		Title:   title,
		Version: h.renderer.version,
		Nav:     nav,
		Mode:    wheel.ParseMode(r.URL.Query().Get("mode")),
	}
}

// HandleTimeline handles GET /captures: captures newest first.
func (h *Handlers) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Limit:  parseIntParam(r, "limit", 20),
		Offset: parseIntParam(r, "offset", 0),
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from != "" {
		t, err := ops.ParseTime(from)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		input.Start = &t
	}
	if to != "" {
		t, err := ops.ParseRangeEnd(to)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		input.End = &t
	}

	result, err := ops.Timeline(r.Context(), h.store, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "timeline", TimelinePageData{
		PageData:   h.page(r, "Timeline", "timeline"),
		Items:      result.Items,
		Pagination: result.Pagination,
		From:       from,
		To:         to,
	})
}

// HandleDetail handles GET /captures/{id}: view a single capture.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	c, err := h.store.GetCapture(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, ops.Summarize(c))
		return
	}

	page := h.page(r, fmt.Sprintf("Capture #%d", c.ID), "timeline")
	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData:       page,
		Capture:        c,
		TranscriptHTML: renderMarkdown(c.Transcript),
		Color:          wheel.Color(c.Emotion, page.Mode),
	})
}

// HandleVideo handles GET /captures/{id}/video: stream the recorded clip.
func (h *Handlers) HandleVideo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	blob, mime, found, err := h.store.GetVideo(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if !found {
		h.renderer.renderError(w, r, errors.NewNotFound(fmt.Sprintf("%d (no video)", id)))
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// HandleStats handles GET /stats: totals per emotion and intensity band.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	page := h.page(r, "Statistics", "stats")
	stats, err := ops.Stats(r.Context(), h.store, page.Mode)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, stats)
		return
	}

	h.renderer.renderPage(w, "stats", StatsPageData{PageData: page, Stats: stats})
}

// HandleTrace handles GET /trace: the emotion path drawn over the wheel.
func (h *Handlers) HandleTrace(w http.ResponseWriter, r *http.Request) {
	data, err := h.trace(r, "Trace")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"radius": data.Radius, "points": data.Points, "path": data.Path})
		return
	}
	h.renderer.renderPage(w, "trace", data)
}

// HandleTraceSVG handles GET /trace.svg: the trace as a standalone image.
func (h *Handlers) HandleTraceSVG(w http.ResponseWriter, r *http.Request) {
	data, err := h.trace(r, "Trace")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderBlock(w, http.StatusOK, "trace", "wheel-svg", "image/svg+xml", data)
}

func (h *Handlers) trace(r *http.Request, title string) (TracePageData, error) {
	page := h.page(r, title, "trace")
	radius := traceSize/2 - 40.0
	trace, err := ops.Trace(r.Context(), h.store, radius, page.Mode)
	if err != nil {
		return TracePageData{}, err
	}
	return traceData(page, trace, traceSize), nil
}

// HandleExport handles GET /export/{format}: download every capture.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := ops.Format(r.PathValue("format"))
	stamp := time.Now().Format("2006-01-02T150405")

	switch format {
	case ops.FormatJSON:
		data, err := ops.ExportJSON(r.Context(), h.store, parseBoolParam(r, "include_video"))
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="captures-%s.json"`, stamp))
		renderJSON(w, http.StatusOK, data)
	case ops.FormatCSV:
		all, err := h.store.GetAllCaptures(r.Context())
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="captures-%s.csv"`, stamp))
		w.WriteHeader(http.StatusOK)
		if err := ops.WriteCSV(w, all, time.Local); err != nil {
			h.renderer.logger.Warn("csv export interrupted", "error", err)
		}
	default:
		h.renderer.renderError(w, r, errors.NewInvalidRequest("format must be one of: json, csv"))
	}
}

// parseID reads the {id} path value.
func parseID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid capture id %q", raw))
	}
	return id, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
