package record

// ScoreBounds is the observed range of ranking scores across all
// loaded cells. Scores of 0 (filter-only matches) are excluded.
type ScoreBounds struct {
	Min       float64
	Max       float64
	HasScores bool
}

// DefaultBounds returns the degraded unit range used when no
// query-bearing cell has produced a score yet. The cutoff control
// disables itself on HasScores=false instead of crashing.
func DefaultBounds() ScoreBounds {
	return ScoreBounds{Min: 0, Max: 1, HasScores: false}
}

// Observe folds a score into the bounds, ignoring non-positive scores.
func (b ScoreBounds) Observe(score float64) ScoreBounds {
	if score <= 0 {
		return b
	}
	if !b.HasScores {
		return ScoreBounds{Min: score, Max: score, HasScores: true}
	}
	if score < b.Min {
		b.Min = score
	}
	if score > b.Max {
		b.Max = score
	}
	return b
}
