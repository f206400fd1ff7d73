package feed

import (
	"sort"

	"golang.org/x/text/cases"
)

// StopFilter is a case-insensitive set of stop ids. The zero value keeps
// every stop.
type StopFilter struct {
	ids map[string]struct{}
}

// NewStopFilter builds a filter from ids.
func NewStopFilter(ids ...string) StopFilter {
	if len(ids) == 0 {
		return StopFilter{}
	}
	f := StopFilter{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		f.ids[fold(id)] = struct{}{}
	}
	return f
}

// Allows reports whether stopID passes the filter.
func (f StopFilter) Allows(stopID string) bool {
	if len(f.ids) == 0 {
		return true
	}
	_, ok := f.ids[fold(stopID)]
	return ok
}

// Len returns the number of ids in the filter.
func (f StopFilter) Len() int { return len(f.ids) }

func fold(s string) string {
	return cases.Fold().String(s)
}

// StopIndex maps a folded stop name to the stop ids carrying that name, such
// as the platform variants of one station.
type StopIndex map[string][]string

// Add records id under name once.
func (idx StopIndex) Add(name, id string) {
	key := fold(name)
	for _, existing := range idx[key] {
		if existing == id {
			return
		}
	}
	idx[key] = append(idx[key], id)
	sort.Strings(idx[key])
}

// Resolve returns the ids known for name.
func (idx StopIndex) Resolve(name string) ([]string, bool) {
	ids, ok := idx[fold(name)]
	if !ok || len(ids) == 0 {
		return nil, false
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, true
}
