package ops

import (
	"context"

	"github.com/hpungsan/moodtrace/internal/store"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// EmotionCount is one row of the per-emotion breakdown.
type EmotionCount struct {
	Emotion string `json:"emotion"`
	Count   int    `json:"count"`
	Color   string `json:"color"`
}

// StatsOutput summarizes the collection.
type StatsOutput struct {
	Total         int            `json:"total"`
	ByEmotion     []EmotionCount `json:"byEmotion"`
	MostCommon    string         `json:"mostCommon,omitempty"`
	ByLevel       map[string]int `json:"byLevel"`
	MeanIntensity float64        `json:"meanIntensity"`
	WithVideo     int            `json:"withVideo"`
	First         int64          `json:"first,omitempty"`
	Last          int64          `json:"last,omitempty"`
}

// Stats computes totals per emotion (all eight categories, table order) and
// per intensity band. The most common emotion breaks ties by table order.
func Stats(ctx context.Context, st *store.Store, mode wheel.Mode) (*StatsOutput, error) {
	agg, err := st.Summarize(ctx)
	if err != nil {
		return nil, err
	}

	out := &StatsOutput{
		Total:         agg.Total,
		MeanIntensity: agg.MeanIntensity,
		WithVideo:     agg.WithVideo,
		First:         agg.First,
		Last:          agg.Last,
		ByLevel: map[string]int{
			string(wheel.Mild):     agg.ByLevel[string(wheel.Mild)],
			string(wheel.Moderate): agg.ByLevel[string(wheel.Moderate)],
			string(wheel.Intense):  agg.ByLevel[string(wheel.Intense)],
		},
	}

	best := 0
	for _, cat := range wheel.Categories() {
		n := agg.ByEmotion[cat.Name]
		out.ByEmotion = append(out.ByEmotion, EmotionCount{Emotion: cat.Name, Count: n, Color: cat.ColorFor(mode)})
		if n > best {
			best = n
			out.MostCommon = cat.Name
		}
	}
	return out, nil
}
