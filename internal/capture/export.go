package capture

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// ExportDateLayout is ISO-8601 UTC with millisecond precision.
const ExportDateLayout = "2006-01-02T15:04:05.000Z"

// ExportRecord is a capture in the JSON export format.
type ExportRecord struct {
	ID             int64   `json:"id"`
	Timestamp      int64   `json:"timestamp"`
	SessionID      string  `json:"sessionId"`
	Emotion        string  `json:"emotion"`
	Angle          float64 `json:"angle"`
	Intensity      float64 `json:"intensity"`
	IntensityLevel string  `json:"intensityLevel"`
	Transcript     string  `json:"transcript"`
	// VideoBlob is base64 when video is included, null otherwise
	VideoBlob *string `json:"videoBlob"`
}

// ExportWrapper is the snapshot written by a JSON export.
type ExportWrapper struct {
	ExportDate    string         `json:"exportDate"`
	TotalCaptures int            `json:"totalCaptures"`
	Captures      []ExportRecord `json:"captures"`
}

// FormatExportDate renders t as an export date.
func FormatExportDate(t time.Time) string {
	return t.UTC().Format(ExportDateLayout)
}

// ToExportRecord converts a capture for export. The blob is encoded only when
// includeVideo is set and the capture's video was loaded.
func ToExportRecord(c *Capture, includeVideo bool) ExportRecord {
	rec := ExportRecord{
		ID:             c.ID,
		Timestamp:      c.Timestamp,
		SessionID:      c.SessionID,
		Emotion:        c.Emotion,
		Angle:          c.Angle,
		Intensity:      c.Intensity,
		IntensityLevel: string(c.IntensityLevel),
		Transcript:     c.Transcript,
	}
	if includeVideo && len(c.Video) > 0 {
		enc := base64.StdEncoding.EncodeToString(c.Video)
		rec.VideoBlob = &enc
	}
	return rec
}

// importRecord is the lenient shape accepted on import. id is ignored; an
// unrecognized intensityLevel, or one that contradicts intensity, is
// re-derived from intensity.
type importRecord struct {
	ID             json.RawMessage `json:"id"`
	Timestamp      *int64          `json:"timestamp"`
	SessionID      *string         `json:"sessionId"`
	Emotion        string          `json:"emotion"`
	Angle          *float64        `json:"angle"`
	Intensity      *float64        `json:"intensity"`
	IntensityLevel string          `json:"intensityLevel"`
	Transcript     string          `json:"transcript"`
	VideoBlob      json.RawMessage `json:"videoBlob"`
}

// ParseImport decodes an import payload: either a raw array of capture-like
// records or a wrapper object with a captures field. Every record is converted
// and validated before anything is returned, so a malformed payload yields
// IMPORT_FORMAT and no drafts.
func ParseImport(data []byte) ([]*Draft, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.NewImportFormat("import payload is empty")
	}

	var raw []importRecord
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, errors.NewImportFormat(fmt.Sprintf("invalid JSON array: %v", err))
		}
	case '{':
		var wrapper struct {
			Captures *[]importRecord `json:"captures"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, errors.NewImportFormat(fmt.Sprintf("invalid JSON object: %v", err))
		}
		if wrapper.Captures == nil {
			return nil, errors.NewImportFormat("object payload has no captures field")
		}
		raw = *wrapper.Captures
	default:
		return nil, errors.NewImportFormat("payload must be a JSON array or an object with captures")
	}

	drafts := make([]*Draft, 0, len(raw))
	for i := range raw {
		d, err := raw[i].toDraft()
		if err != nil {
			return nil, errors.NewImportFormat(fmt.Sprintf("record %d: %s", i+1, err.Error()))
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// toDraft converts an imported record. The angle is authoritative: the
// emotion is recomputed from it. A record with only an emotion gets that
// category's canonical angle.
func (r *importRecord) toDraft() (*Draft, error) {
	d := &Draft{
		Timestamp:  r.Timestamp,
		SessionID:  r.SessionID,
		Transcript: r.Transcript,
	}

	switch {
	case r.Angle != nil:
		d.Angle = wheel.NormalizeAngle(*r.Angle)
		d.Emotion = wheel.CategoryForAngle(d.Angle).Name
	case r.Emotion != "":
		cat, ok := wheel.Lookup(r.Emotion)
		if !ok {
			return nil, fmt.Errorf("unknown emotion %q", r.Emotion)
		}
		d.Angle = cat.Angle
		d.Emotion = cat.Name
	default:
		return nil, fmt.Errorf("angle or emotion is required")
	}

	if r.Intensity == nil {
		return nil, fmt.Errorf("intensity is required")
	}
	d.Intensity = *r.Intensity
	if level, ok := wheel.ParseLevel(r.IntensityLevel); ok && wheel.LevelMatches(d.Intensity, level) {
		d.Level = level
	}

	if r.SessionID != nil && *r.SessionID == "" {
		d.SessionID = nil
	}

	d.Video = decodeVideo(r.VideoBlob)
	if len(d.Video) > 0 {
		d.VideoMIME = DefaultVideoMIME
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%s", errors.As(err).Message)
	}
	return d, nil
}

// decodeVideo keeps a blob only when it arrives as a base64 string. Anything
// else (null, objects from a browser dump, bad base64) is dropped.
func decodeVideo(raw json.RawMessage) []byte {
	if len(raw) == 0 || raw[0] != '"' {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
