// Package capture defines the persisted capture record, the draft handed to
// the store, and the JSON export/import shapes.
package capture

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// Capture is one persisted emotion report with optional media.
type Capture struct {
	// ID is assigned by the store on insert and never reused
	ID int64

	// Timestamp is the creation instant in epoch milliseconds
	Timestamp int64

	// SessionID identifies the application run that produced the capture
	SessionID string

	// Emotion is one of the eight wheel category names
	Emotion string

	// Angle is in degrees, [0, 360)
	Angle float64

	// Intensity is the normalized radius, [0, 1]
	Intensity float64

	// IntensityLevel is the band chosen at selection time, or derived from
	// Intensity when the draft carried none
	IntensityLevel wheel.Level

	// Transcript is the speech recognized during the recording (may be empty)
	Transcript string

	// HasVideo is true when a media blob is stored for this capture.
	// List queries fill it without loading Video.
	HasVideo bool

	// Video is the recorded media. Nil unless explicitly loaded.
	Video []byte

	// VideoMIME is the container type of Video (e.g. video/webm)
	VideoMIME string
}

// Time returns Timestamp as a time.Time in the local zone.
func (c *Capture) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// Draft is the in-flight capture assembled by a session (or an import) and
// handed to the store. Optional fields left nil are filled by the store.
type Draft struct {
	Timestamp  *int64
	SessionID  *string
	Emotion    string
	Angle      float64
	Intensity  float64

	// Level is the band chosen at selection time. Empty means derive it from
	// Intensity.
	Level wheel.Level

	Transcript string
	Video      []byte
	VideoMIME  string
}

// Validate checks the draft before it is handed to the store and
// canonicalizes the emotion name. The emotion must be the category nearest to
// the angle.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Emotion) == "" {
		return errors.NewInvalidRequest("emotion is required")
	}
	cat, ok := wheel.Lookup(d.Emotion)
	if !ok {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown emotion %q", d.Emotion))
	}
	if math.IsNaN(d.Angle) || math.IsInf(d.Angle, 0) || d.Angle < 0 || d.Angle >= 360 {
		return errors.NewInvalidRequest(fmt.Sprintf("angle must be within [0, 360), got %v", d.Angle))
	}
	if math.IsNaN(d.Intensity) || d.Intensity < 0 || d.Intensity > 1 {
		return errors.NewInvalidRequest(fmt.Sprintf("intensity must be within [0, 1], got %v", d.Intensity))
	}
	if nearest := wheel.CategoryForAngle(d.Angle); nearest.Name != cat.Name {
		return errors.NewInvalidRequest(fmt.Sprintf("emotion %s does not match angle %v (%s)", cat.Name, d.Angle, nearest.Name))
	}
	if d.Level != "" {
		level, ok := wheel.ParseLevel(string(d.Level))
		if !ok {
			return errors.NewInvalidRequest(fmt.Sprintf("unknown intensity level %q", d.Level))
		}
		if !wheel.LevelMatches(d.Intensity, level) {
			return errors.NewInvalidRequest(fmt.Sprintf("intensity level %s does not match intensity %v (%s)",
				level, d.Intensity, wheel.LevelFor(d.Intensity)))
		}
		d.Level = level
	}
	if d.Timestamp != nil && *d.Timestamp < 0 {
		return errors.NewInvalidRequest("timestamp must not be negative")
	}
	if d.SessionID != nil && strings.TrimSpace(*d.SessionID) == "" {
		return errors.NewInvalidRequest("sessionId must not be blank")
	}
	if len(d.Video) > 0 && d.VideoMIME == "" {
		d.VideoMIME = DefaultVideoMIME
	}
	d.Emotion = cat.Name
	return nil
}

// DraftFromSelection builds a draft from a resolved wheel selection.
func DraftFromSelection(sel wheel.Selection, transcript string, video []byte, mime string) *Draft {
	return &Draft{
		Emotion:    sel.Emotion,
		Angle:      sel.Angle,
		Intensity:  sel.Intensity,
		Level:      sel.Level,
		Transcript: transcript,
		Video:      video,
		VideoMIME:  mime,
	}
}

// DefaultVideoMIME is the container produced by the recorder.
const DefaultVideoMIME = "video/webm"
