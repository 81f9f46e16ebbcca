// Package streak derives streak statistics from an unordered completion log.
package streak

import (
	"sort"
	"time"
)

// maxGap is the tolerance between successive completions for a streak to
// continue. 1.5 days treats same-day and next-day completions as continuing
// while absorbing timezone and clock skew; a gap of two full days breaks it.
const maxGap = 36 * time.Hour

// Stats are derived from the completion log, never persisted.
type Stats struct {
	CurrentStreak    int `json:"currentStreak"`
	BestStreak       int `json:"bestStreak"`
	TotalCompletions int `json:"totalCompletions"`
}

// Compute walks the completion log for one habit in ascending order and
// reports the last observed run as the current streak. The run is not
// reconciled against "now": a log whose most recent entry is stale still
// reports that run as current.
func Compute(completedAt []time.Time) Stats {
	if len(completedAt) == 0 {
		return Stats{}
	}

	sorted := make([]time.Time, len(completedAt))
	copy(sorted, completedAt)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	run := 1
	best := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Sub(sorted[i-1]) <= maxGap {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}

	return Stats{
		CurrentStreak:    run,
		BestStreak:       best,
		TotalCompletions: len(sorted),
	}
}

// Rank orders entries by best streak descending. The sort is stable so ties
// keep their fetch order.
func Rank[T any](entries []T, best func(T) int) []T {
	ranked := make([]T, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return best(ranked[i]) > best(ranked[j])
	})
	return ranked
}
