package ops

import (
	"context"

	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/store"
)

// ClearInput contains parameters for the Clear operation.
type ClearInput struct {
	Confirm bool // must be true; the clear cannot be undone
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Deleted int64 `json:"deleted"`
}

// Clear irreversibly deletes every capture.
func Clear(ctx context.Context, st *store.Store, input ClearInput) (*ClearOutput, error) {
	if !input.Confirm {
		return nil, errors.NewInvalidRequest("clear deletes every capture; set confirm to proceed")
	}
	n, err := st.DeleteAllCaptures(ctx)
	if err != nil {
		return nil, err
	}
	return &ClearOutput{Deleted: n}, nil
}
