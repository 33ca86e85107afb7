// Package store is the capture store service: the only owner of persisted
// captures. It assigns timestamps and the run's session id, derives missing
// intensity bands, and surfaces every persistence failure as STORAGE_ERROR.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/clock"
	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/db"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/logging"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// Options configures a Store.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
	// Config tunes the connection pool. Optional.
	Config *config.Config
}

// Store persists captures in sqlite.
type Store struct {
	db     *sql.DB
	clock  clock.Clock
	logger *slog.Logger
	ownsDB bool

	mu        sync.Mutex
	ready     bool
	sessionID string
}

// Open initializes the database under baseDir and returns a ready Store.
func Open(ctx context.Context, baseDir string, opts Options) (*Store, error) {
	sqlDB, err := db.Init(baseDir)
	if err != nil {
		return nil, errors.NewStorage("init", err)
	}
	db.ConfigurePool(sqlDB, opts.Config)

	s := New(sqlDB, opts)
	s.ownsDB = true
	if err := s.Init(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database. Init must be called before use.
func New(sqlDB *sql.DB, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Store{db: sqlDB, clock: opts.Clock, logger: opts.Logger}
}

// Init verifies the connection and brings the schema up to date. It is
// idempotent.
func (s *Store) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewStorage("init", err)
	}
	if err := db.Migrate(s.db); err != nil {
		return errors.NewStorage("init", err)
	}
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

// DB exposes the underlying handle for read-only reporting queries.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database if Open created it.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// SessionID returns this run's session id, generating it on first use as
// session_<epoch ms>_<9 random chars>.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
		s.sessionID = fmt.Sprintf("session_%d_%s", s.clock.Now().UnixMilli(), suffix)
	}
	return s.sessionID
}

func (s *Store) checkReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return errors.NewStorage("access", fmt.Errorf("store not initialized"))
	}
	return nil
}

// SaveCapture validates and inserts a draft. Timestamp and session id are
// filled only when the draft leaves them nil; the intensity level is derived
// from the intensity unless the selection already chose one.
func (s *Store) SaveCapture(ctx context.Context, d *capture.Draft) (int64, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	if d == nil {
		return 0, errors.NewInvalidRequest("draft is required")
	}
	if err := d.Validate(); err != nil {
		return 0, err
	}

	level := d.Level
	if level == "" {
		level = wheel.LevelFor(d.Intensity)
	}
	c := &capture.Capture{
		Emotion:        d.Emotion,
		Angle:          d.Angle,
		Intensity:      d.Intensity,
		IntensityLevel: level,
		Transcript:     d.Transcript,
		Video:          d.Video,
		VideoMIME:      d.VideoMIME,
	}
	if d.Timestamp != nil {
		c.Timestamp = *d.Timestamp
	} else {
		c.Timestamp = s.clock.Now().UnixMilli()
	}
	if d.SessionID != nil {
		c.SessionID = *d.SessionID
	} else {
		c.SessionID = s.SessionID()
	}

	id, err := db.Insert(ctx, s.db, c)
	if err != nil {
		s.logger.Warn("capture insert failed", "error", err)
		return 0, err
	}
	s.logger.Debug("capture saved", "id", id, "emotion", c.Emotion, "level", c.IntensityLevel, "video", c.HasVideo)
	return id, nil
}

// GetAllCaptures returns every capture in insertion order, without blobs.
func (s *Store) GetAllCaptures(ctx context.Context) ([]capture.Capture, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	return db.ListAll(ctx, s.db, false)
}

// GetCapturesByDateRange returns captures with start <= timestamp <= end.
func (s *Store) GetCapturesByDateRange(ctx context.Context, start, end time.Time) ([]capture.Capture, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, errors.NewInvalidRequest("range end is before start")
	}
	return db.ListByDateRange(ctx, s.db, start.UnixMilli(), end.UnixMilli(), false)
}

// GetCapture returns one capture without its blob.
func (s *Store) GetCapture(ctx context.Context, id int64) (*capture.Capture, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	return db.GetByID(ctx, s.db, id)
}

// DeleteAllCaptures irreversibly removes every capture.
func (s *Store) DeleteAllCaptures(ctx context.Context) (int64, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	n, err := db.DeleteAll(ctx, s.db)
	if err != nil {
		return 0, err
	}
	s.logger.Info("captures cleared", "count", n)
	return n, nil
}

// ExportData snapshots the collection for serialization.
func (s *Store) ExportData(ctx context.Context, includeVideo bool) (*capture.ExportWrapper, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	all, err := db.ListAll(ctx, s.db, includeVideo)
	if err != nil {
		return nil, err
	}
	out := &capture.ExportWrapper{
		ExportDate:    capture.FormatExportDate(s.clock.Now()),
		TotalCaptures: len(all),
		Captures:      make([]capture.ExportRecord, 0, len(all)),
	}
	for i := range all {
		out.Captures = append(out.Captures, capture.ToExportRecord(&all[i], includeVideo))
	}
	return out, nil
}

// GetVideoBlob returns a capture's media, if it has any.
func (s *Store) GetVideoBlob(ctx context.Context, id int64) ([]byte, bool, error) {
	blob, _, found, err := s.GetVideo(ctx, id)
	return blob, found, err
}

// GetVideo returns a capture's media and its MIME type.
func (s *Store) GetVideo(ctx context.Context, id int64) ([]byte, string, bool, error) {
	if err := s.checkReady(); err != nil {
		return nil, "", false, err
	}
	return db.GetVideo(ctx, s.db, id)
}

// Count returns the number of stored captures.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	return db.Count(ctx, s.db)
}

// Summarize returns collection statistics.
func (s *Store) Summarize(ctx context.Context) (*db.Aggregate, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	return db.Summarize(ctx, s.db)
}
