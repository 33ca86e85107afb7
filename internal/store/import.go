package store

import (
	"context"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/errors"
)

// ImportError records a draft that failed to insert.
type ImportError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	IDs      []int64       `json:"ids,omitempty"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// ImportCaptures inserts already parsed drafts one by one. Drafts keep their
// own timestamp and session id when present. A failing insert is counted as
// skipped and the rest continue; earlier inserts are not rolled back.
// Context cancellation stops the import and returns CANCELLED along with the
// partial result.
func (s *Store) ImportCaptures(ctx context.Context, drafts []*capture.Draft) (*ImportResult, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	res := &ImportResult{}
	for i, d := range drafts {
		if err := ctx.Err(); err != nil {
			return res, errors.NewCancelled("import")
		}
		id, err := s.SaveCapture(ctx, d)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, ImportError{Index: i, Message: errors.As(err).Message})
			continue
		}
		res.Imported++
		res.IDs = append(res.IDs, id)
	}

	s.logger.Info("captures imported", "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}
