package reconcile

import (
	"sort"
	"time"
)

// Upcoming keeps the trips departing more than offset after now and returns
// them ascending by departure. Equal instants keep payload order. The input
// slice is not modified.
func Upcoming(trips []ResolvedTrip, now time.Time, offset time.Duration) []ResolvedTrip {
	var out []ResolvedTrip
	for _, t := range trips {
		if t.Accurate.Sub(now) > offset {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Accurate.Equal(out[j].Accurate) {
			return out[i].Accurate.Before(out[j].Accurate)
		}
		return out[i].order < out[j].order
	})
	return out
}
