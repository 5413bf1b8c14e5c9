package analysis

import "github.com/parlando-ai/parlando/internal/history"

// TrendDirection summarises score movement across recent sessions.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// trendThreshold is the minimum average-score movement that counts as a
// real change rather than session-to-session noise.
const trendThreshold = 3.0

// Trend describes how the learner's overall score has moved.
type Trend struct {
	Direction TrendDirection `json:"direction"`

	// Delta is the change between the average of the older half and the
	// average of the newer half of the considered records.
	Delta float64 `json:"delta"`

	// Sessions is how many records contributed.
	Sessions int `json:"sessions"`
}

// ComputeTrend compares the newer half of the records against the older
// half. Fewer than two records is always stable.
func ComputeTrend(records []history.Record) Trend {
	if len(records) < 2 {
		return Trend{Direction: TrendStable, Sessions: len(records)}
	}

	mid := len(records) / 2
	older := average(records[:mid])
	newer := average(records[mid:])
	delta := newer - older

	direction := TrendStable
	switch {
	case delta >= trendThreshold:
		direction = TrendImproving
	case delta <= -trendThreshold:
		direction = TrendDeclining
	}

	return Trend{Direction: direction, Delta: delta, Sessions: len(records)}
}

func average(records []history.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		sum += r.Overall
	}
	return sum / float64(len(records))
}
