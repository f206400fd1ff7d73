// Package reconcile turns normalized feed records into the departures a
// sensor reports: it matches trips serving both configured stops, resolves
// the best available departure instant for each, filters them against the
// lead-time horizon and builds the projection.
//
// Every function here is pure. A poll cycle owns its inputs and the
// resulting Projection is the only value that outlives it.
package reconcile

import (
	"sort"

	"golang.org/x/text/cases"

	"etasensor/internal/feed"
)

// IDSet is the set of stop ids a configured stop name resolves to. Lookups
// are case-insensitive.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[cases.Fold().String(id)] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[cases.Fold().String(id)]
	return ok
}

// IDs returns the members in sorted order.
func (s IDSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MatchedTrip is a trip that visits the origin before the destination.
type MatchedTrip struct {
	TripID      string
	Origin      feed.StopRecord
	Destination feed.StopRecord
}

// MatchStats counts why trips were not matched.
type MatchStats struct {
	Considered int
	Incomplete int // fewer or more than two relevant stops
	Reversed   int // destination visited first
	Ambiguous  int // equal ordinals or the same stop twice
}

// Match keeps the trips that carry exactly two records, one in origin and
// one in destination, with the origin record at the smaller sequence
// ordinal. Results follow the payload's trip order.
//
// When the two sets overlap, the record with the smaller ordinal is taken as
// the origin candidate, so a loop that serves the same station name at both
// ends is decided by ordinal alone.
func Match(recs *feed.Records, origin, destination IDSet) ([]MatchedTrip, MatchStats) {
	var stats MatchStats
	if recs == nil {
		return nil, stats
	}

	var out []MatchedTrip
	for _, tripID := range recs.TripOrder {
		stats.Considered++

		var relevant []feed.StopRecord
		for stopID, rec := range recs.ByTrip[tripID] {
			if origin.Has(stopID) || destination.Has(stopID) {
				relevant = append(relevant, rec)
			}
		}
		if len(relevant) != 2 {
			stats.Incomplete++
			continue
		}

		sort.Slice(relevant, func(i, j int) bool {
			if relevant[i].Sequence != relevant[j].Sequence {
				return relevant[i].Sequence < relevant[j].Sequence
			}
			return relevant[i].StopID < relevant[j].StopID
		})
		first, second := relevant[0], relevant[1]

		if first.Sequence == second.Sequence || first.StopID == second.StopID {
			stats.Ambiguous++
			continue
		}
		if !origin.Has(first.StopID) || !destination.Has(second.StopID) {
			// Either the return leg or two records from the same set.
			if destination.Has(first.StopID) && origin.Has(second.StopID) {
				stats.Reversed++
			} else {
				stats.Incomplete++
			}
			continue
		}

		out = append(out, MatchedTrip{TripID: tripID, Origin: first, Destination: second})
	}
	return out, stats
}
