package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strconv"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// listColumns selects everything except the blob itself.
const listColumns = `
	id, timestamp, session_id, emotion, angle, intensity, intensity_level,
	transcript, video_blob IS NOT NULL AND length(video_blob) > 0, COALESCE(video_mime, '')
`

// Insert stores a new capture and returns its assigned id.
// The write is scoped to a single-statement transaction.
func Insert(ctx context.Context, db *sql.DB, c *capture.Capture) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewStorage("insert", err)
	}

	var (
		blob any
		mime sql.NullString
	)
	if len(c.Video) > 0 {
		blob = c.Video
		mime = sql.NullString{String: c.VideoMIME, Valid: c.VideoMIME != ""}
	}

	query := `
		INSERT INTO captures (
			timestamp, session_id, emotion, angle, intensity, intensity_level,
			transcript, video_blob, video_mime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := tx.ExecContext(ctx, query,
		c.Timestamp, c.SessionID, c.Emotion, c.Angle, c.Intensity, string(c.IntensityLevel),
		c.Transcript, blob, mime,
	)
	if err != nil {
		_ = tx.Rollback()
		return 0, errors.NewStorage("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, errors.NewStorage("insert", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewStorage("insert", err)
	}

	c.ID = id
	c.HasVideo = len(c.Video) > 0
	return id, nil
}

// ListAll returns every capture in insertion order. Blobs are loaded only when
// withVideo is set.
func ListAll(ctx context.Context, db *sql.DB, withVideo bool) ([]capture.Capture, error) {
	return list(ctx, db, withVideo, "", "ORDER BY id")
}

// ListByDateRange returns captures whose timestamp lies within [start, end],
// in insertion order.
func ListByDateRange(ctx context.Context, db *sql.DB, start, end int64, withVideo bool) ([]capture.Capture, error) {
	return list(ctx, db, withVideo, "WHERE timestamp >= ? AND timestamp <= ?", "ORDER BY id", start, end)
}

// ListBySession returns one session's captures in insertion order.
func ListBySession(ctx context.Context, db *sql.DB, sessionID string) ([]capture.Capture, error) {
	return list(ctx, db, false, "WHERE session_id = ?", "ORDER BY id", sessionID)
}

func list(ctx context.Context, db *sql.DB, withVideo bool, where, order string, args ...any) ([]capture.Capture, error) {
	cols := listColumns
	if withVideo {
		cols += ", video_blob"
	}
	query := "SELECT " + cols + " FROM captures " + where + " " + order

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorage("query", err)
	}
	defer rows.Close()

	var out []capture.Capture
	for rows.Next() {
		c, err := scanCapture(rows, withVideo)
		if err != nil {
			return nil, errors.NewStorage("scan", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("query", err)
	}
	return out, nil
}

// GetByID retrieves a single capture without its blob.
func GetByID(ctx context.Context, db *sql.DB, id int64) (*capture.Capture, error) {
	row := db.QueryRowContext(ctx, "SELECT "+listColumns+" FROM captures WHERE id = ?", id)
	c, err := scanCapture(row, false)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound(formatID(id))
	}
	if err != nil {
		return nil, errors.NewStorage("get", err)
	}
	return c, nil
}

// GetVideo returns the blob and its MIME type for a capture. found is false
// when the capture does not exist or has no video.
func GetVideo(ctx context.Context, db *sql.DB, id int64) (blob []byte, mime string, found bool, err error) {
	var m sql.NullString
	err = db.QueryRowContext(ctx, "SELECT video_blob, video_mime FROM captures WHERE id = ?", id).Scan(&blob, &m)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, errors.NewStorage("get video", err)
	}
	if len(blob) == 0 {
		return nil, "", false, nil
	}
	mime = m.String
	if mime == "" {
		mime = capture.DefaultVideoMIME
	}
	return blob, mime, true, nil
}

// DeleteAll removes every capture and returns the number removed.
// AUTOINCREMENT keeps ids from being reused afterwards.
func DeleteAll(ctx context.Context, db *sql.DB) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM captures")
	if err != nil {
		return 0, errors.NewStorage("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewStorage("delete", err)
	}
	return n, nil
}

// Count returns the number of stored captures.
func Count(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM captures").Scan(&n); err != nil {
		return 0, errors.NewStorage("count", err)
	}
	return n, nil
}

// Aggregate summarizes the whole collection.
type Aggregate struct {
	Total         int
	MeanIntensity float64
	First         int64
	Last          int64
	ByEmotion     map[string]int
	ByLevel       map[string]int
	WithVideo     int
}

// Summarize computes collection statistics with grouped queries.
func Summarize(ctx context.Context, db *sql.DB) (*Aggregate, error) {
	agg := &Aggregate{ByEmotion: map[string]int{}, ByLevel: map[string]int{}}

	var (
		mean        sql.NullFloat64
		first, last sql.NullInt64
	)
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(intensity), MIN(timestamp), MAX(timestamp),
			COALESCE(SUM(video_blob IS NOT NULL AND length(video_blob) > 0), 0)
		FROM captures
	`).Scan(&agg.Total, &mean, &first, &last, &agg.WithVideo)
	if err != nil {
		return nil, errors.NewStorage("summarize", err)
	}
	agg.MeanIntensity = mean.Float64
	agg.First = first.Int64
	agg.Last = last.Int64

	if err := groupCount(ctx, db, "emotion", agg.ByEmotion); err != nil {
		return nil, err
	}
	if err := groupCount(ctx, db, "intensity_level", agg.ByLevel); err != nil {
		return nil, err
	}
	return agg, nil
}

func groupCount(ctx context.Context, db *sql.DB, column string, into map[string]int) error {
	// column is one of two fixed identifiers, never user input
	rows, err := db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM captures GROUP BY "+column)
	if err != nil {
		return errors.NewStorage("summarize", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return errors.NewStorage("summarize", err)
		}
		into[key] = n
	}
	if err := rows.Err(); err != nil {
		return errors.NewStorage("summarize", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanCapture scans a single row into a Capture.
func scanCapture(row scanner, withVideo bool) (*capture.Capture, error) {
	var (
		c     capture.Capture
		level string
	)
	dest := []any{
		&c.ID, &c.Timestamp, &c.SessionID, &c.Emotion, &c.Angle, &c.Intensity, &level,
		&c.Transcript, &c.HasVideo, &c.VideoMIME,
	}
	if withVideo {
		dest = append(dest, &c.Video)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.IntensityLevel = wheel.Level(level)
	return &c, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
