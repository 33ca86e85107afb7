package ops

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Summary is a capture as listed by the read operations (no blob).
type Summary struct {
	ID             int64   `json:"id"`
	Timestamp      int64   `json:"timestamp"`
	Time           string  `json:"time"`
	SessionID      string  `json:"sessionId"`
	Emotion        string  `json:"emotion"`
	Angle          float64 `json:"angle"`
	Intensity      float64 `json:"intensity"`
	IntensityLevel string  `json:"intensityLevel"`
	Transcript     string  `json:"transcript"`
	HasVideo       bool    `json:"hasVideo"`
}

// Summarize converts a capture for listing.
func Summarize(c *capture.Capture) Summary {
	return Summary{
		ID:             c.ID,
		Timestamp:      c.Timestamp,
		Time:           c.Time().Format(time.RFC3339),
		SessionID:      c.SessionID,
		Emotion:        c.Emotion,
		Angle:          c.Angle,
		Intensity:      c.Intensity,
		IntensityLevel: string(c.IntensityLevel),
		Transcript:     c.Transcript,
		HasVideo:       c.HasVideo,
	}
}

// ParseTime accepts RFC 3339, a bare date (local midnight), or epoch
// milliseconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.NewInvalidRequest("time value is empty")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("cannot parse time %q (want RFC 3339, YYYY-MM-DD or epoch ms)", s))
}

// ParseRangeEnd is ParseTime, except a bare date means the end of that day so
// "--to 2025-01-31" includes the whole day.
func ParseRangeEnd(s string) (time.Time, error) {
	t, err := ParseTime(s)
	if err != nil {
		return t, err
	}
	if _, dateErr := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.Local); dateErr == nil {
		return t.Add(24*time.Hour - time.Millisecond), nil
	}
	return t, nil
}
