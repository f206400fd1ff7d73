package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"etasensor/internal/mbta"
	"etasensor/internal/storage"
)

// Table is an immutable Stops and Routes implementation.
type Table struct {
	stops  map[string][]string
	routes map[string]Route
}

// NewTable builds a table. Stop names and route long names, short names and
// ids are all cleaned with CleanKey.
func NewTable(stops map[string][]string, routes []Route) *Table {
	t := &Table{
		stops:  make(map[string][]string, len(stops)),
		routes: make(map[string]Route, len(routes)*2),
	}
	for name, ids := range stops {
		t.addStop(name, ids...)
	}
	for _, r := range routes {
		for _, key := range []string{r.ID, r.ShortName, r.LongName} {
			if key == "" {
				continue
			}
			k := CleanKey(key)
			if _, taken := t.routes[k]; !taken {
				t.routes[k] = r
			}
		}
	}
	return t
}

func (t *Table) addStop(name string, ids ...string) {
	key := CleanKey(name)
	seen := make(map[string]bool, len(t.stops[key]))
	for _, id := range t.stops[key] {
		seen[id] = true
	}
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			t.stops[key] = append(t.stops[key], id)
		}
	}
	sort.Strings(t.stops[key])
}

// Resolve implements Stops.
func (t *Table) Resolve(name string) ([]string, bool) {
	ids, ok := t.stops[CleanKey(name)]
	if !ok || len(ids) == 0 {
		return nil, false
	}
	return append([]string(nil), ids...), true
}

// Route implements Routes.
func (t *Table) Route(name string) (Route, bool) {
	r, ok := t.routes[CleanKey(name)]
	return r, ok
}

// Len returns the number of stop names and routes.
func (t *Table) Len() (stops, routes int) {
	ids := make(map[string]bool)
	for _, r := range t.routes {
		ids[r.ID] = true
	}
	return len(t.stops), len(ids)
}

// FromDB loads the lookup tables imported by the GTFS importer. Each stop is
// also reachable by its own id, for feeds that carry no stop names.
func FromDB(ctx context.Context, db *storage.DB) (*Table, error) {
	routeRows, err := db.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	stopRows, err := db.Stops(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stops: %w", err)
	}

	stops := make(map[string][]string)
	for _, s := range stopRows {
		stops[s.Name] = append(stops[s.Name], s.StopID)
		stops[s.StopID] = append(stops[s.StopID], s.StopID)
	}
	routes := make([]Route, 0, len(routeRows))
	for _, r := range routeRows {
		routes = append(routes, Route{
			ID:                    r.RouteID,
			LongName:              r.LongName,
			ShortName:             r.ShortName,
			Color:                 r.Color,
			TextColor:             r.TextColor,
			Type:                  r.Type,
			DirectionNames:        r.DirectionNames,
			DirectionDestinations: r.DirectionDestinations,
		})
	}
	return NewTable(stops, routes), nil
}

// File is the JSON lookup format. Stop values may be a single id or a list
// of ids; keys may be raw or already cleaned names.
type File struct {
	Stops  map[string]json.RawMessage `json:"stops"`
	Routes []Route                    `json:"routes"`
}

// LoadJSON reads a lookup file. A flat object of name to id, as written by
// the stop extractor, is accepted as a stops-only file.
func LoadJSON(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lookup file: %w", err)
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil || (f.Stops == nil && f.Routes == nil) {
		var flat map[string]json.RawMessage
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("parse lookup file %s: %w", path, err)
		}
		f = File{Stops: flat}
	}

	stops := make(map[string][]string, len(f.Stops))
	for name, v := range f.Stops {
		ids, err := decodeIDs(v)
		if err != nil {
			return nil, fmt.Errorf("stop %q: %w", name, err)
		}
		stops[name] = ids
	}
	return NewTable(stops, f.Routes), nil
}

func decodeIDs(v json.RawMessage) ([]string, error) {
	var one string
	if err := json.Unmarshal(v, &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(v, &many); err != nil {
		return nil, fmt.Errorf("want string or list of strings")
	}
	return many, nil
}

// FromRoutes builds a routes-only table from a /routes response.
func FromRoutes(doc *mbta.Document) (*Table, error) {
	if doc == nil || len(doc.Data) == 0 {
		return nil, fmt.Errorf("route catalogue is empty")
	}
	var routes []Route
	for _, res := range doc.Data {
		if res.Type != mbta.TypeRoute {
			continue
		}
		var attrs mbta.RouteAttributes
		if err := res.Decode(&attrs); err != nil {
			continue
		}
		routes = append(routes, Route{
			ID:                    res.ID,
			LongName:              attrs.LongName,
			ShortName:             attrs.ShortName,
			Color:                 attrs.Color,
			TextColor:             attrs.TextColor,
			Type:                  attrs.Type,
			DirectionNames:        attrs.DirectionNames,
			DirectionDestinations: attrs.DirectionDestinations,
		})
	}
	return NewTable(nil, routes), nil
}

// Merge combines tables. Earlier tables win on conflicting route keys; stop
// ids for the same name are unioned.
func Merge(tables ...*Table) *Table {
	out := &Table{stops: make(map[string][]string), routes: make(map[string]Route)}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for key, ids := range t.stops {
			out.addStop(key, ids...)
		}
		for key, r := range t.routes {
			if _, taken := out.routes[key]; !taken {
				out.routes[key] = r
			}
		}
	}
	return out
}
