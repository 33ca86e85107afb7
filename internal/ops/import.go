package ops

import (
	"context"
	"fmt"
	"io"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/store"
)

// MaxImportBytes bounds the size of an import payload (video blobs included).
const MaxImportBytes = 512 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string // required, .json
}

// ImportOutput contains the result of the Import operation.
type ImportOutput = store.ImportResult

// Import reads an export (or a raw array of captures) from a file and stores
// every record. The whole payload is parsed and validated before the first
// write; a malformed file stores nothing.
func Import(ctx context.Context, st *store.Store, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if err := ValidatePath(input.Path, PathCheckRead, ImportExtensions, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewImportFormat(fmt.Sprintf("import file exceeds %d bytes", MaxImportBytes))
	}

	return ImportData(ctx, st, data)
}

// ImportData imports an in-memory payload (used by the MCP and web surfaces).
func ImportData(ctx context.Context, st *store.Store, data []byte) (*ImportOutput, error) {
	drafts, err := capture.ParseImport(data)
	if err != nil {
		return nil, err
	}
	return st.ImportCaptures(ctx, drafts)
}
