package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/clock"
	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/store"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

var epoch = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store *store.Store
	clock *clock.Fake
	cfg   *config.Config
	home  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.HomeEnv, home)

	fc := clock.NewFake(epoch)
	st, err := store.Open(context.Background(), home, store.Options{Clock: fc})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &fixture{store: st, clock: fc, cfg: config.DefaultConfig(), home: home}
}

func (f *fixture) save(t *testing.T, emotion string, angle, intensity float64, transcript string, video []byte) int64 {
	t.Helper()
	id, err := f.store.SaveCapture(context.Background(), &capture.Draft{
		Emotion: emotion, Angle: angle, Intensity: intensity, Transcript: transcript, Video: video,
	})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	return id
}

// TestFullWorkflow exercises export → clear → import → stats.
func TestFullWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.save(t, "Joy", 0, 0.5, "joyful morning", nil)
	f.save(t, "Anger", 275, 0.9, "", []byte("clip"))

	// 1. Export with video
	out, err := Export(ctx, f.store, f.cfg, ExportInput{IncludeVideo: true})
	require.NoError(t, err)
	require.Equal(t, 2, out.Count)
	require.Equal(t, filepath.Join(f.home, "exports"), filepath.Dir(out.Path))
	require.Equal(t, FormatJSON, out.Format)

	// 2. Clear
	_, err = Clear(ctx, f.store, ClearInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	cleared, err := Clear(ctx, f.store, ClearInput{Confirm: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, cleared.Deleted)

	// 3. Import the export back
	imp, err := Import(ctx, f.store, f.cfg, ImportInput{Path: out.Path})
	require.NoError(t, err)
	require.Equal(t, 2, imp.Imported)

	list, err := List(ctx, f.store, ListInput{})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, epoch.UnixMilli(), list.Items[0].Timestamp)
	require.True(t, list.Items[1].HasVideo)

	// 4. Stats
	stats, err := Stats(ctx, f.store, wheel.ModeNormal)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Len(t, stats.ByEmotion, 8)
	require.Equal(t, 1, stats.ByLevel["intense"])
	require.Equal(t, 1, stats.WithVideo)
}

func TestExport_CSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.save(t, "Sadness", 180, 0.5, `he said "no"`, nil)

	path := filepath.Join(f.home, "exports", "out.csv")
	out, err := Export(ctx, f.store, f.cfg, ExportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, FormatCSV, out.Format)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	require.Equal(t, "Timestamp,Date,Time,Emotion,Angle,Intensity,Transcript,Has Video", lines[0])
	require.Contains(t, lines[1], `"Sadness","180","0.5","he said ""no""","No"`)
}

func TestExport_RejectsCSVWithVideo(t *testing.T) {
	f := newFixture(t)
	_, err := Export(context.Background(), f.store, f.cfg, ExportInput{Format: FormatCSV, IncludeVideo: true})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestExport_ExtensionMustMatchFormat(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.home, "exports", "out.csv")
	_, err := Export(context.Background(), f.store, f.cfg, ExportInput{Path: path, Format: FormatJSON})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestWriteCSV_AngleZeroAndQuoting(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []capture.Capture{{
		Timestamp: epoch.UnixMilli(), Emotion: "Joy", Angle: 0, Intensity: 0.25,
		Transcript: `a "b", c`, HasVideo: true,
	}}, time.UTC)
	require.NoError(t, err)

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 2)
	want := `"1746878400000","2025-05-10","12:00:00","Joy","0","0.25","a ""b"", c","Yes"`
	require.Equal(t, want, lines[1])
}

func TestImport_MalformedWritesNothing(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.home, "exports", "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"emotion":"Joy","intensity":0.2},{"emotion":"Nope","intensity":0.1}]`), 0600))

	_, err := Import(context.Background(), f.store, f.cfg, ImportInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrImportFormat))

	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestImport_ImportedValuesWinOverDefaults(t *testing.T) {
	f := newFixture(t)
	payload := []byte(`[{"id": 77, "timestamp": 1000, "sessionId": "session_old", "emotion": "Trust", "angle": 45, "intensity": 0.3}]`)

	res, err := ImportData(context.Background(), f.store, payload)
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)
	require.NotEqual(t, int64(77), res.IDs[0])

	c, err := f.store.GetCapture(context.Background(), res.IDs[0])
	require.NoError(t, err)
	require.Equal(t, int64(1000), c.Timestamp)
	require.Equal(t, "session_old", c.SessionID)
	require.Equal(t, wheel.Mild, c.IntensityLevel)
}

func TestTimeline_NewestFirstAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.save(t, "Joy", 0, 0.5, "", nil)
	}

	out, err := Timeline(ctx, f.store, ListInput{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	require.Equal(t, 5, out.Pagination.Total)
	require.True(t, out.Pagination.HasMore)
	require.Greater(t, out.Items[0].Timestamp, out.Items[1].Timestamp)
	require.Equal(t, epoch.Add(3*time.Minute).UnixMilli(), out.Items[0].Timestamp)
}

func TestList_DateRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		f.save(t, "Joy", 0, 0.5, "", nil)
	}

	from := epoch.Add(time.Minute)
	to := epoch.Add(2 * time.Minute)
	out, err := List(ctx, f.store, ListInput{Start: &from, End: &to})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
}

func TestStats_MostCommonTieUsesTableOrder(t *testing.T) {
	f := newFixture(t)
	f.save(t, "Fear", 90, 0.5, "", nil)
	f.save(t, "Trust", 45, 0.5, "", nil)

	stats, err := Stats(context.Background(), f.store, wheel.ModeXRay)
	require.NoError(t, err)
	require.Equal(t, "Trust", stats.MostCommon)
	require.Equal(t, "#00CED1", stats.ByEmotion[1].Color)
}

func TestStats_Empty(t *testing.T) {
	f := newFixture(t)
	stats, err := Stats(context.Background(), f.store, wheel.ModeNormal)
	require.NoError(t, err)
	require.Zero(t, stats.Total)
	require.Empty(t, stats.MostCommon)
}

func TestTrace_ChronologicalPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := int64(5)
	_, err := f.store.SaveCapture(ctx, &capture.Draft{Emotion: "Fear", Angle: 90, Intensity: 1, Timestamp: &ts})
	require.NoError(t, err)
	f.save(t, "Joy", 0, 0.5, "", nil)

	trace, err := Trace(ctx, f.store, 100, wheel.ModeNormal)
	require.NoError(t, err)
	require.Len(t, trace.Points, 2)
	require.Equal(t, "Fear", trace.Points[0].Emotion)
	require.InDelta(t, 0, trace.Points[0].X, 1e-9)
	require.InDelta(t, 100, trace.Points[0].Y, 1e-9)
	require.InDelta(t, 50, trace.Points[1].X, 1e-9)
	require.Equal(t, "M100.00 200.00 L150.00 100.00", trace.SVGPath(100, 100))
}

func TestSaveVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	withVideo := f.save(t, "Joy", 0, 0.5, "", []byte("webm-data"))
	without := f.save(t, "Joy", 0, 0.5, "", nil)

	out, err := SaveVideo(ctx, f.store, f.cfg, VideoInput{ID: withVideo})
	require.NoError(t, err)
	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.Equal(t, "webm-data", string(data))
	require.Equal(t, ".webm", filepath.Ext(out.Path))

	_, err = SaveVideo(ctx, f.store, f.cfg, VideoInput{ID: without})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestExportJSON_Shape(t *testing.T) {
	f := newFixture(t)
	f.save(t, "Joy", 0, 0.5, "", []byte("x"))

	wrapper, err := ExportJSON(context.Background(), f.store, false)
	require.NoError(t, err)
	data, err := json.Marshal(wrapper)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	require.Contains(t, generic, "exportDate")
	require.EqualValues(t, 1, generic["totalCaptures"])
	first := generic["captures"].([]any)[0].(map[string]any)
	require.Nil(t, first["videoBlob"])
	for _, key := range []string{"id", "timestamp", "sessionId", "emotion", "angle", "intensity", "intensityLevel", "transcript"} {
		require.Contains(t, first, key)
	}
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("1700000000000")
	require.NoError(t, err)
	require.Equal(t, int64(1700000000000), got.UnixMilli())

	_, err = ParseTime("2025-01-02T03:04:05Z")
	require.NoError(t, err)

	end, err := ParseRangeEnd("2025-01-02")
	require.NoError(t, err)
	require.Equal(t, 23, end.Hour())

	_, err = ParseTime("yesterday")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
