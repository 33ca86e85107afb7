package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/store"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path         string // optional, default: <home>/exports/captures-<timestamp>.<format>
	Format       Format // optional, inferred from Path, default json
	IncludeVideo bool   // json only: embed base64 blobs
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     Format `json:"format"`
	Count      int    `json:"count"`
	ExportDate string `json:"exportDate"`
}

// Export writes every capture to a JSON or CSV file.
func Export(ctx context.Context, st *store.Store, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	format, err := resolveFormat(input.Format, input.Path)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV && input.IncludeVideo {
		return nil, errors.NewInvalidRequest("include_video is only supported for json exports")
	}

	now := time.Now()
	exportPath := input.Path
	if exportPath == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		exportPath = filepath.Join(dir, fmt.Sprintf("captures-%s.%s", now.Format("2006-01-02T150405"), format))
	}

	// Default paths are validated too.
	if err := ValidatePath(exportPath, PathCheckWrite, DataExtensions, cfg); err != nil {
		return nil, err
	}

	if !strings.EqualFold(filepath.Ext(exportPath), "."+string(format)) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("path extension does not match format %s", format))
	}

	out := &ExportOutput{Path: exportPath, Format: format}
	var write func(w io.Writer) error

	if format == FormatCSV {
		all, err := st.GetAllCaptures(ctx)
		if err != nil {
			return nil, err
		}
		out.Count = len(all)
		out.ExportDate = capture.FormatExportDate(now)
		write = func(w io.Writer) error { return WriteCSV(w, all, time.Local) }
	} else {
		data, err := st.ExportData(ctx, input.IncludeVideo)
		if err != nil {
			return nil, err
		}
		out.Count = data.TotalCaptures
		out.ExportDate = data.ExportDate
		write = func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		}
	}

	if err := writeFileAtomic(ctx, exportPath, write); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportJSON returns the export wrapper without touching the filesystem.
func ExportJSON(ctx context.Context, st *store.Store, includeVideo bool) (*capture.ExportWrapper, error) {
	return st.ExportData(ctx, includeVideo)
}

func resolveFormat(f Format, path string) (Format, error) {
	if f == "" {
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			return FormatCSV, nil
		}
		return FormatJSON, nil
	}
	switch Format(strings.ToLower(string(f))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", errors.NewInvalidRequest("format must be one of: json, csv")
	}
}
