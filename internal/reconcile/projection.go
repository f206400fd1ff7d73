package reconcile

import "time"

// NothingScheduled is the state reported when no trip qualifies.
const NothingScheduled = "Nothing Scheduled"

// Labels echo the configured names and route metadata into the projection.
type Labels struct {
	Route          string
	DepartFrom     string
	ArriveAt       string
	RouteType      string
	RouteColor     string
	DirectionNames []string
}

// Departure is one reported ETA. Only ETA and Delay are part of the
// serialized attribute list.
type Departure struct {
	TripID   string    `json:"-"`
	At       time.Time `json:"-"`
	Arrives  time.Time `json:"-"` // scheduled, at the destination stop
	Headsign string    `json:"-"`
	ETA      string    `json:"departure"`
	Delay    *string   `json:"delay"`
}

// Projection is the externally visible result of a successful cycle.
type Projection struct {
	// State is the primary ETA, or NothingScheduled.
	State    string
	Primary  *Departure
	Upcoming []Departure

	DirectionID    *int
	DirectionLabel string

	Labels     Labels
	ComputedAt time.Time
}

// Empty reports whether nothing qualified.
func (p Projection) Empty() bool { return p.Primary == nil }

// Delay is the primary departure's delay, if any.
func (p Projection) Delay() *string {
	if p.Primary == nil {
		return nil
	}
	return p.Primary.Delay
}

// Build maps the filtered, ordered trips into a projection. The first trip
// is primary; at most limit of the rest become Upcoming. A limit of zero or
// less leaves Upcoming empty.
func Build(trips []ResolvedTrip, now time.Time, limit int, labels Labels) Projection {
	p := Projection{
		State:      NothingScheduled,
		Upcoming:   []Departure{},
		Labels:     labels,
		ComputedAt: now,
	}
	if len(trips) == 0 {
		return p
	}

	primary := departure(trips[0], now)
	p.Primary = &primary
	p.State = primary.ETA
	p.DirectionID = trips[0].DirectionID
	if id := p.DirectionID; id != nil && *id >= 0 && *id < len(labels.DirectionNames) {
		p.DirectionLabel = labels.DirectionNames[*id]
	}

	rest := trips[1:]
	if limit < 0 {
		limit = 0
	}
	if len(rest) > limit {
		rest = rest[:limit]
	}
	for _, t := range rest {
		p.Upcoming = append(p.Upcoming, departure(t, now))
	}
	return p
}

func departure(t ResolvedTrip, now time.Time) Departure {
	d := Departure{
		TripID:   t.TripID,
		At:       t.Accurate,
		Arrives:  t.Destination.Scheduled,
		Headsign: t.Headsign,
		ETA:      FormatDuration(now, t.Accurate),
	}
	if _, ok := t.Delay(); ok {
		s := FormatDuration(t.Scheduled, *t.Predicted)
		d.Delay = &s
	}
	return d
}
