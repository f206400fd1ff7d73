// Package lookup resolves configured route and stop names to agency ids.
//
// Tables are built once at startup, from the SQLite lookup database, a JSON
// file or the live route catalogue, and never change afterwards, so one
// Table can be shared by every sensor.
package lookup

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrRouteNotFound is returned when a configured route name has no id.
	ErrRouteNotFound = errors.New("route not found")
	// ErrStopNotFound is returned when a configured stop name has no id.
	ErrStopNotFound = errors.New("stop not found")
)

// Stops resolves a stop name to every id carrying it.
type Stops interface {
	Resolve(name string) ([]string, bool)
}

// Routes resolves a route name to its metadata.
type Routes interface {
	Route(name string) (Route, bool)
}

// Route is route metadata shared by every sensor on the route.
type Route struct {
	ID                    string   `json:"id"`
	LongName              string   `json:"long_name"`
	ShortName             string   `json:"short_name,omitempty"`
	Color                 string   `json:"color"`
	TextColor             string   `json:"text_color,omitempty"`
	Type                  int      `json:"type"`
	DirectionNames        []string `json:"direction_names,omitempty"`
	DirectionDestinations []string `json:"direction_destinations,omitempty"`
}

// TypeLabel is the route type name, e.g. "CommuterRail".
func (r Route) TypeLabel() string { return RouteTypeLabel(r.Type) }

var routeTypeLabels = []string{"LightRail", "HeavyRail", "CommuterRail", "Bus", "Ferry"}

// RouteTypeLabel names a GTFS route type. Unknown types yield "".
func RouteTypeLabel(t int) string {
	if t < 0 || t >= len(routeTypeLabels) {
		return ""
	}
	return routeTypeLabels[t]
}

// CleanKey normalizes a name for lookup: spaces, slashes and underscores
// are removed and the rest is upper-cased, so "North Station" and
// "north_station" share a key.
func CleanKey(name string) string {
	name = strings.NewReplacer(" ", "", "/", "", "_", "").Replace(name)
	return cases.Upper(language.Und).String(name)
}

// Chain tries each Stops in order and returns the first hit.
func Chain(stops ...Stops) Stops {
	return chain(stops)
}

type chain []Stops

func (c chain) Resolve(name string) ([]string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if ids, ok := s.Resolve(name); ok {
			return ids, true
		}
	}
	return nil, false
}
