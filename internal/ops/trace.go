package ops

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/store"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// TracePoint is one capture placed back on the wheel.
type TracePoint struct {
	ID        int64   `json:"id"`
	Timestamp int64   `json:"timestamp"`
	Emotion   string  `json:"emotion"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
}

// TraceOutput is the chronological path through the wheel.
type TraceOutput struct {
	Radius float64      `json:"radius"`
	Points []TracePoint `json:"points"`
}

// Trace maps every capture's (angle, intensity) back to wheel coordinates,
// oldest first, so the emotion path can be drawn.
func Trace(ctx context.Context, st *store.Store, radius float64, mode wheel.Mode) (*TraceOutput, error) {
	all, err := st.GetAllCaptures(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(all, func(a, b capture.Capture) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})

	out := &TraceOutput{Radius: radius, Points: make([]TracePoint, 0, len(all))}
	for _, c := range all {
		x, y := wheel.Point(c.Angle, c.Intensity, radius)
		out.Points = append(out.Points, TracePoint{
			ID:        c.ID,
			Timestamp: c.Timestamp,
			Emotion:   c.Emotion,
			X:         x,
			Y:         y,
			Color:     wheel.Color(c.Emotion, mode),
		})
	}
	return out, nil
}

// SVGPath renders the trace as an SVG path string with the wheel center at
// (cx, cy). An empty trace yields "".
func (t *TraceOutput) SVGPath(cx, cy float64) string {
	var b strings.Builder
	for i, p := range t.Points {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s%.2f %.2f", cmd, cx+p.X, cy+p.Y)
	}
	return b.String()
}
