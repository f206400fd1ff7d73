package reconcile

import (
	"time"

	"etasensor/internal/feed"
)

// ResolvedTrip is a matched trip with its best departure estimate.
type ResolvedTrip struct {
	TripID      string
	Origin      feed.StopRecord
	Destination feed.StopRecord

	// Accurate is Predicted when a prediction is linked, else Scheduled.
	Accurate  time.Time
	Scheduled time.Time
	Predicted *time.Time

	// DirectionID is whatever the feed reported. It is exposed as an
	// attribute only; the direction of travel comes from the ordinals.
	DirectionID *int
	Headsign    string

	order int
}

// HasPrediction reports whether a real-time estimate was linked.
func (r ResolvedTrip) HasPrediction() bool { return r.Predicted != nil }

// Delay returns predicted minus scheduled. ok is false when there is no
// prediction or the prediction equals the schedule.
func (r ResolvedTrip) Delay() (d time.Duration, ok bool) {
	if r.Predicted == nil || r.Predicted.Equal(r.Scheduled) {
		return 0, false
	}
	return r.Predicted.Sub(r.Scheduled), true
}

// Resolve picks the departure instant at the origin stop. A linked
// prediction id that is missing from predictions counts as no prediction.
func Resolve(m MatchedTrip, predictions map[string]feed.PredictionRecord, trips map[string]feed.TripInfo) ResolvedTrip {
	r := ResolvedTrip{
		TripID:      m.TripID,
		Origin:      m.Origin,
		Destination: m.Destination,
		Scheduled:   m.Origin.Scheduled,
		Accurate:    m.Origin.Scheduled,
		DirectionID: m.Origin.DirectionID,
		Headsign:    m.Origin.Headsign,
		order:       m.Origin.Order(),
	}

	if m.Origin.HasPrediction() {
		if p, ok := predictions[m.Origin.PredictionID]; ok {
			predicted := p.Predicted
			r.Predicted = &predicted
			r.Accurate = predicted
		}
	}

	if info, ok := trips[m.TripID]; ok {
		if r.DirectionID == nil {
			r.DirectionID = info.DirectionID
		}
		if r.Headsign == "" {
			r.Headsign = info.Headsign
		}
	}
	return r
}

// ResolveAll resolves every matched trip, keeping their order.
func ResolveAll(matched []MatchedTrip, recs *feed.Records) []ResolvedTrip {
	out := make([]ResolvedTrip, 0, len(matched))
	for _, m := range matched {
		out = append(out, Resolve(m, recs.Predictions, recs.Trips))
	}
	return out
}
