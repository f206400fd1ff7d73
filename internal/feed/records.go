// Package feed normalizes raw transit payloads into flat schedule and
// prediction records keyed by trip.
//
// Each supported payload layout implements Payload. A poll cycle fetches one
// payload, resolves the configured stop names against it (or a static table),
// and then calls Normalize with the resulting stop filter. Malformed records
// are dropped and counted; an empty payload or an API error fails the cycle.
package feed

import (
	"errors"
	"time"
)

var (
	// ErrEmptyFeed is returned when a payload carries no primary records.
	ErrEmptyFeed = errors.New("feed has no records")
	// ErrAPIStatus is returned when a payload carries an API error object.
	ErrAPIStatus = errors.New("feed reported an api error")
	// ErrDecode is returned when a binary payload cannot be parsed.
	ErrDecode = errors.New("feed could not be decoded")
)

// StopRecord binds one trip to one stop with its scheduled instant.
type StopRecord struct {
	StopID       string
	TripID       string
	Sequence     int
	Scheduled    time.Time
	PredictionID string // empty when no prediction is linked
	DirectionID  *int
	Headsign     string
	order        int
}

// HasPrediction reports whether the record links a prediction.
func (r StopRecord) HasPrediction() bool { return r.PredictionID != "" }

// Order is the position of the record in the payload's primary list.
func (r StopRecord) Order() int { return r.order }

// PredictionRecord is a real-time estimate for one stop of one trip.
type PredictionRecord struct {
	ID        string
	StopID    string
	TripID    string
	Predicted time.Time
}

// TripInfo is optional per-trip metadata carried by the payload.
type TripInfo struct {
	Headsign    string
	DirectionID *int
}

// RouteInfo is route metadata carried by the payload.
type RouteInfo struct {
	ID                    string
	LongName              string
	Color                 string
	Type                  int
	DirectionNames        []string
	DirectionDestinations []string
}

// Records is the normalized content of one payload.
type Records struct {
	// ByTrip maps trip id -> stop id -> record.
	ByTrip map[string]map[string]StopRecord
	// TripOrder lists trip ids in the order they first appeared.
	TripOrder []string
	// Predictions maps prediction id -> record.
	Predictions map[string]PredictionRecord
	Trips       map[string]TripInfo
	Routes      map[string]RouteInfo
	// Dropped counts records skipped because they could not be parsed.
	Dropped int

	next int
}

// NewRecords returns an empty Records.
func NewRecords() *Records {
	return &Records{
		ByTrip:      make(map[string]map[string]StopRecord),
		Predictions: make(map[string]PredictionRecord),
		Trips:       make(map[string]TripInfo),
		Routes:      make(map[string]RouteInfo),
	}
}

// Add stores rec under its trip and stamps its payload order.
func (r *Records) Add(rec StopRecord) {
	rec.order = r.next
	r.next++
	stops, ok := r.ByTrip[rec.TripID]
	if !ok {
		stops = make(map[string]StopRecord)
		r.ByTrip[rec.TripID] = stops
		r.TripOrder = append(r.TripOrder, rec.TripID)
	}
	stops[rec.StopID] = rec
}

// Payload is one fetched feed in a specific layout.
type Payload interface {
	// Stops returns the stop-name index carried by the payload. It is empty
	// for layouts that carry no stop metadata.
	Stops() StopIndex
	// Normalize extracts records whose stop passes filter.
	Normalize(filter StopFilter) (*Records, error)
}
