package ops

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/store"
)

// VideoInput contains parameters for the SaveVideo operation.
type VideoInput struct {
	ID   int64
	Path string // optional, default: <home>/exports/capture-<id>.webm
}

// VideoOutput contains the result of the SaveVideo operation.
type VideoOutput struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
	MIME  string `json:"mime"`
}

// SaveVideo writes a capture's recorded media to a file.
func SaveVideo(ctx context.Context, st *store.Store, cfg *config.Config, input VideoInput) (*VideoOutput, error) {
	if input.ID <= 0 {
		return nil, errors.NewInvalidRequest("id must be positive")
	}

	blob, mime, found, err := st.GetVideo(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFound(fmt.Sprintf("%d (no video)", input.ID))
	}

	path := input.Path
	if path == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, fmt.Sprintf("capture-%d%s", input.ID, extensionFor(mime)))
	}
	if err := ValidatePath(path, PathCheckWrite, VideoExtensions, cfg); err != nil {
		return nil, err
	}

	err = writeFileAtomic(ctx, path, func(w io.Writer) error {
		_, err := w.Write(blob)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &VideoOutput{Path: path, Bytes: len(blob), MIME: mime}, nil
}

func extensionFor(mime string) string {
	switch mime {
	case "video/mp4":
		return ".mp4"
	case "video/x-matroska":
		return ".mkv"
	default:
		return ".webm"
	}
}
