package ops

import (
	"context"
	"slices"
	"time"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/store"
)

// ListInput contains parameters for the List and Timeline operations.
type ListInput struct {
	Start  *time.Time // optional inclusive lower bound
	End    *time.Time // optional inclusive upper bound
	Limit  int        // default: 50, max: 500
	Offset int        // default: 0
}

// ListOutput contains a page of captures.
type ListOutput struct {
	Items      []Summary  `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// List returns captures in insertion order.
func List(ctx context.Context, st *store.Store, input ListInput) (*ListOutput, error) {
	all, err := load(ctx, st, input)
	if err != nil {
		return nil, err
	}
	return page(all, input, "insertion"), nil
}

// Timeline returns captures newest first.
func Timeline(ctx context.Context, st *store.Store, input ListInput) (*ListOutput, error) {
	all, err := load(ctx, st, input)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(all, func(a, b capture.Capture) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return page(all, input, "timestamp_desc"), nil
}

func load(ctx context.Context, st *store.Store, input ListInput) ([]capture.Capture, error) {
	if input.Start == nil && input.End == nil {
		return st.GetAllCaptures(ctx)
	}
	start := time.UnixMilli(0)
	end := time.UnixMilli(1<<62 - 1)
	if input.Start != nil {
		start = *input.Start
	}
	if input.End != nil {
		end = *input.End
	}
	return st.GetCapturesByDateRange(ctx, start, end)
}

func page(all []capture.Capture, input ListInput, sort string) *ListOutput {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	total := len(all)
	lo := min(offset, total)
	hi := min(lo+limit, total)

	items := make([]Summary, 0, hi-lo)
	for i := lo; i < hi; i++ {
		items = append(items, Summarize(&all[i]))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: hi < total,
			Total:   total,
		},
		Sort: sort,
	}
}
