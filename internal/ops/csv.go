package ops

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/moodtrace/internal/capture"
)

// CSVHeader is the fixed column order of CSV exports.
var CSVHeader = []string{"Timestamp", "Date", "Time", "Emotion", "Angle", "Intensity", "Transcript", "Has Video"}

// WriteCSV writes captures as CSV. Every cell is quoted and embedded quotes
// are doubled; Date and Time are rendered in loc.
func WriteCSV(w io.Writer, captures []capture.Capture, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	if _, err := io.WriteString(w, strings.Join(CSVHeader, ",")); err != nil {
		return err
	}
	for i := range captures {
		c := &captures[i]
		t := time.UnixMilli(c.Timestamp).In(loc)
		hasVideo := "No"
		if c.HasVideo || len(c.Video) > 0 {
			hasVideo = "Yes"
		}
		row := []string{
			strconv.FormatInt(c.Timestamp, 10),
			t.Format("2006-01-02"),
			t.Format("15:04:05"),
			c.Emotion,
			formatFloat(c.Angle),
			formatFloat(c.Intensity),
			c.Transcript,
			hasVideo,
		}
		if _, err := io.WriteString(w, "\n"+quoteRow(row)); err != nil {
			return err
		}
	}
	return nil
}

func quoteRow(cells []string) string {
	quoted := make([]string, len(cells))
	for i, cell := range cells {
		quoted[i] = `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
