// Package export writes projections to calendar files.
package export

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"etasensor/internal/reconcile"
)

// ICS writes one event per departure in p (primary first) to w. Events run
// from the departure to the scheduled arrival at the destination; when the
// arrival is unknown or not after the departure they last one minute.
func ICS(name string, p reconcile.Projection, stamp time.Time, w io.Writer) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//etasensor//" + name + "//EN")

	deps := make([]reconcile.Departure, 0, len(p.Upcoming)+1)
	if p.Primary != nil {
		deps = append(deps, *p.Primary)
	}
	deps = append(deps, p.Upcoming...)

	for i, d := range deps {
		end := d.Arrives
		if !end.After(d.At) {
			end = d.At.Add(time.Minute)
		}
		uid := fmt.Sprintf("%s-%s-%d@etasensor", name, d.At.UTC().Format("20060102T150405Z"), i)
		if d.TripID != "" {
			uid = fmt.Sprintf("%s-%s@etasensor", name, d.TripID)
		}

		event := cal.AddEvent(uid)
		event.SetCreatedTime(stamp)
		event.SetDtStampTime(stamp)
		event.SetModifiedAt(stamp)
		event.SetStartAt(d.At)
		event.SetEndAt(end)
		event.SetSummary(summary(p.Labels, d))
		event.SetLocation(p.Labels.DepartFrom)

		desc := fmt.Sprintf("Route: %s\nDeparts in: %s", p.Labels.Route, d.ETA)
		if d.Delay != nil {
			desc += "\nDelay: " + *d.Delay
		}
		if d.Headsign != "" {
			desc += "\nHeadsign: " + d.Headsign
		}
		event.SetDescription(desc)
	}

	return cal.SerializeTo(w)
}

func summary(l reconcile.Labels, d reconcile.Departure) string {
	s := fmt.Sprintf("%s: %s to %s", l.Route, l.DepartFrom, l.ArriveAt)
	if d.Delay != nil {
		s += " (delayed)"
	}
	return s
}
