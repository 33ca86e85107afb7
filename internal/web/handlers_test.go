package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/clock"
	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/logging"
	"github.com/hpungsan/moodtrace/internal/store"
)

func setupTest(t *testing.T) (*Handlers, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC))
	st, err := store.Open(context.Background(), t.TempDir(), store.Options{Clock: fc})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &Handlers{
		store:    st,
		cfg:      config.DefaultConfig(),
		renderer: NewRenderer(templateSub, "test", logging.Discard()),
	}, fc
}

// seedCapture stores a capture and returns its ID.
func seedCapture(t *testing.T, h *Handlers, fc *clock.Fake, emotion string, angle float64, transcript string, video []byte) int64 {
	t.Helper()
	id, err := h.store.SaveCapture(context.Background(), &capture.Draft{
		Emotion:    emotion,
		Angle:      angle,
		Intensity:  0.5,
		Transcript: transcript,
		Video:      video,
	})
	if err != nil {
		t.Fatalf("seed capture %q: %v", emotion, err)
	}
	fc.Advance(time.Minute)
	return id
}

func serve(h *Handlers, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	routes(h, nil).ServeHTTP(rec, req)
	return rec
}

// --- HandleTimeline ---

func TestHandleTimeline_Default(t *testing.T) {
	h, fc := setupTest(t)
	seedCapture(t, h, fc, "Joy", 0, "sunny walk", nil)

	rec := serve(h, "GET", "/captures", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "sunny walk") {
		t.Error("expected transcript in response")
	}
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("expected full layout")
	}
	if !strings.Contains(body, "#FFD700") {
		t.Error("expected Joy color")
	}
}

func TestHandleTimeline_Empty(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h, "GET", "/captures", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No captures recorded yet") {
		t.Error("expected empty state message")
	}
}

func TestHandleTimeline_JSON(t *testing.T) {
	h, fc := setupTest(t)
	seedCapture(t, h, fc, "Joy", 0, "first", nil)
	seedCapture(t, h, fc, "Anger", 270, "second", nil)

	rec := serve(h, "GET", "/captures?limit=1", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out struct {
		Items []struct {
			Emotion string `json:"emotion"`
		} `json:"items"`
		Pagination struct {
			Total   int  `json:"total"`
			HasMore bool `json:"has_more"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Emotion != "Anger" {
		t.Fatalf("items = %+v, want newest (Anger) only", out.Items)
	}
	if out.Pagination.Total != 2 || !out.Pagination.HasMore {
		t.Errorf("pagination = %+v", out.Pagination)
	}
}

func TestHandleTimeline_InvalidLimitFallsBack(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h, "GET", "/captures?limit=notanumber&offset=bad", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleTimeline_BadDate(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h, "GET", "/captures?from=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- HandleDetail / HandleVideo ---

func TestHandleDetail(t *testing.T) {
	h, fc := setupTest(t)
	id := seedCapture(t, h, fc, "Sadness", 180, "rainy *afternoon*", []byte("webm"))

	rec := serve(h, "GET", "/captures/"+itoa(id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<em>afternoon</em>") {
		t.Error("expected transcript rendered as markdown")
	}
	if !strings.Contains(body, "/captures/"+itoa(id)+"/video") {
		t.Error("expected video element")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h, "GET", "/captures/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_InvalidID(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h, "GET", "/captures/abc", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Error.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", out.Error.Code)
	}
}

func TestHandleVideo(t *testing.T) {
	h, fc := setupTest(t)
	withVideo := seedCapture(t, h, fc, "Joy", 0, "", []byte("webm-bytes"))
	without := seedCapture(t, h, fc, "Joy", 0, "", nil)

	rec := serve(h, "GET", "/captures/"+itoa(withVideo)+"/video", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "webm-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/webm" {
		t.Errorf("Content-Type = %q, want video/webm", ct)
	}

	rec = serve(h, "GET", "/captures/"+itoa(without)+"/video", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// --- HandleStats / HandleTrace ---

func TestHandleStats(t *testing.T) {
	h, fc := setupTest(t)
	seedCapture(t, h, fc, "Trust", 45, "", nil)
	seedCapture(t, h, fc, "Trust", 45, "", nil)
	seedCapture(t, h, fc, "Fear", 90, "", nil)

	rec := serve(h, "GET", "/stats?format=json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out struct {
		Total      int    `json:"total"`
		MostCommon string `json:"mostCommon"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Total != 3 || out.MostCommon != "Trust" {
		t.Errorf("stats = %+v", out)
	}

	rec = serve(h, "GET", "/stats", nil)
	if !strings.Contains(rec.Body.String(), "<strong>Trust</strong>") {
		t.Error("expected most common emotion in page")
	}
}

func TestHandleTrace_XRayMode(t *testing.T) {
	h, fc := setupTest(t)
	seedCapture(t, h, fc, "Joy", 0, "", nil)

	rec := serve(h, "GET", "/trace?mode=xray", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `class="xray"`) {
		t.Error("expected x-ray body class")
	}
	if !strings.Contains(body, "#00FFFF") {
		t.Error("expected x-ray Joy color")
	}
}

func TestHandleTraceSVG(t *testing.T) {
	h, fc := setupTest(t)
	seedCapture(t, h, fc, "Joy", 0, "", nil)
	seedCapture(t, h, fc, "Anger", 270, "", nil)

	rec := serve(h, "GET", "/trace.svg", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "<svg") {
		t.Errorf("expected bare svg document, got %.40q", body)
	}
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("svg must not include the page layout")
	}
	if !strings.Contains(body, `<path d="M`) {
		t.Error("expected trace path")
	}
}

// --- HandleExport ---

func TestHandleExport_JSON(t *testing.T) {
	h, fc := setupTest(t)
	seedCapture(t, h, fc, "Joy", 0, "hello", []byte("clip"))

	rec := serve(h, "GET", "/export/json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	var out struct {
		TotalCaptures int `json:"totalCaptures"`
		Captures      []struct {
			VideoBlob *string `json:"videoBlob"`
		} `json:"captures"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.TotalCaptures != 1 || len(out.Captures) != 1 {
		t.Fatalf("export = %+v", out)
	}
	if out.Captures[0].VideoBlob != nil {
		t.Error("video must not be embedded without include_video")
	}
}

func TestHandleExport_CSV(t *testing.T) {
	h, fc := setupTest(t)
	seedCapture(t, h, fc, "Joy", 0, "hello", nil)

	rec := serve(h, "GET", "/export/csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 row", len(lines))
	}
}

func TestHandleExport_UnknownFormat(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h, "GET", "/export/xml", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h, "GET", "/", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
