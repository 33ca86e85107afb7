package capture

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

func TestDraftValidate(t *testing.T) {
	t.Run("canonicalizes emotion", func(t *testing.T) {
		d := &Draft{Emotion: "anger", Angle: 270, Intensity: 0.66}
		require.NoError(t, d.Validate())
		assert.Equal(t, "Anger", d.Emotion)
	})

	t.Run("pointer angle off canonical", func(t *testing.T) {
		d := &Draft{Emotion: "Joy", Angle: 10, Intensity: 0.2}
		require.NoError(t, d.Validate())
	})

	t.Run("defaults video mime", func(t *testing.T) {
		d := &Draft{Emotion: "Joy", Angle: 0, Intensity: 0.5, Video: []byte{1}}
		require.NoError(t, d.Validate())
		assert.Equal(t, DefaultVideoMIME, d.VideoMIME)
	})

	t.Run("word selection pair", func(t *testing.T) {
		d := &Draft{Emotion: "Joy", Angle: 0, Intensity: wheel.WordIntensity, Level: wheel.Moderate}
		require.NoError(t, d.Validate())
		assert.Equal(t, wheel.Moderate, d.Level)
	})

	bad := map[string]*Draft{
		"level over band":  {Emotion: "Joy", Angle: 10, Intensity: 0.1, Level: wheel.Intense},
		"level under band": {Emotion: "Fear", Angle: 90, Intensity: 0.95, Level: wheel.Mild},
		"stray moderate":   {Emotion: "Joy", Angle: 0, Intensity: 0.7, Level: wheel.Moderate},
		"missing emotion":  {Angle: 0, Intensity: 0.5},
		"unknown emotion":  {Emotion: "Boredom", Angle: 0, Intensity: 0.5},
		"angle too large":  {Emotion: "Joy", Angle: 360, Intensity: 0.5},
		"negative angle":   {Emotion: "Joy", Angle: -1, Intensity: 0.5},
		"intensity over 1": {Emotion: "Joy", Angle: 0, Intensity: 1.2},
		"angle mismatch":   {Emotion: "Fear", Angle: 0, Intensity: 0.5},
		"blank session":    {Emotion: "Joy", Angle: 0, Intensity: 0.5, SessionID: ptr("  ")},
	}
	for name, d := range bad {
		t.Run(name, func(t *testing.T) {
			err := d.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
		})
	}
}

func TestFormatExportDate(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 3, 9, 123456789, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "2025-06-01T12:03:09.123Z", FormatExportDate(ts))
}

func TestToExportRecord(t *testing.T) {
	c := &Capture{ID: 3, Timestamp: 1700000000000, SessionID: "s", Emotion: "Joy", Angle: 5,
		Intensity: 0.4, IntensityLevel: "moderate", Video: []byte("webm")}

	rec := ToExportRecord(c, false)
	assert.Nil(t, rec.VideoBlob)

	rec = ToExportRecord(c, true)
	require.NotNil(t, rec.VideoBlob)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("webm")), *rec.VideoBlob)

	data, err := json.Marshal(ToExportRecord(c, false))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"videoBlob":null`)
	assert.Contains(t, string(data), `"sessionId":"s"`)
}

func TestParseImport_RawArray(t *testing.T) {
	payload := `[
		{"id": 9, "timestamp": 1700000000000, "sessionId": "session_a", "emotion": "Joy", "angle": 3, "intensity": 0.2, "transcript": "hi"},
		{"emotion": "sadness", "intensity": 0.9}
	]`
	drafts, err := ParseImport([]byte(payload))
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, int64(1700000000000), *drafts[0].Timestamp)
	assert.Equal(t, "session_a", *drafts[0].SessionID)
	assert.Equal(t, "hi", drafts[0].Transcript)

	assert.Nil(t, drafts[1].Timestamp)
	assert.Nil(t, drafts[1].SessionID)
	assert.Equal(t, "Sadness", drafts[1].Emotion)
	assert.Equal(t, 180.0, drafts[1].Angle)
}

func TestParseImport_WrapperAndVideo(t *testing.T) {
	blob := base64.StdEncoding.EncodeToString([]byte("clip"))
	payload := `{"exportDate": "2025-01-01T00:00:00.000Z", "totalCaptures": 3, "captures": [
		{"emotion": "Joy", "angle": 0, "intensity": 0.5, "videoBlob": "` + blob + `"},
		{"emotion": "Joy", "angle": 0, "intensity": 0.5, "videoBlob": {}},
		{"emotion": "Joy", "angle": 0, "intensity": 0.5, "videoBlob": "not base64!"}
	]}`
	drafts, err := ParseImport([]byte(payload))
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, []byte("clip"), drafts[0].Video)
	assert.Equal(t, DefaultVideoMIME, drafts[0].VideoMIME)
	assert.Nil(t, drafts[1].Video)
	assert.Nil(t, drafts[2].Video)
}

func TestParseImport_AngleIsAuthoritative(t *testing.T) {
	drafts, err := ParseImport([]byte(`[{"emotion": "Joy", "angle": 95, "intensity": 0.5}]`))
	require.NoError(t, err)
	assert.Equal(t, "Fear", drafts[0].Emotion)
}

func TestParseImport_ContradictoryLevelIsRederived(t *testing.T) {
	drafts, err := ParseImport([]byte(`[
		{"emotion": "Fear", "angle": 90, "intensity": 0.95, "intensityLevel": "mild"},
		{"emotion": "Joy", "angle": 0, "intensity": 0.66, "intensityLevel": "moderate"},
		{"emotion": "Joy", "angle": 0, "intensity": 0.2, "intensityLevel": "MILD"}
	]`))
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Empty(t, drafts[0].Level)
	assert.Equal(t, wheel.Moderate, drafts[1].Level)
	assert.Equal(t, wheel.Mild, drafts[2].Level)
}

func TestParseImport_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":              ``,
		"invalid json":       `[{]`,
		"scalar":             `42`,
		"object w/o field":   `{"foo": []}`,
		"missing intensity":  `[{"emotion": "Joy", "angle": 0}]`,
		"unknown emotion":    `[{"emotion": "Boredom", "intensity": 0.1}]`,
		"intensity range":    `[{"emotion": "Joy", "intensity": 3}]`,
		"one bad among good": `[{"emotion": "Joy", "intensity": 0.1}, {"intensity": 0.1}]`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			drafts, err := ParseImport([]byte(payload))
			require.Error(t, err)
			assert.Nil(t, drafts)
			assert.True(t, errors.Is(err, errors.ErrImportFormat), "err = %v", err)
		})
	}
}

func ptr[T any](v T) *T { return &v }
