package reconcile

import (
	"strconv"
	"strings"
	"time"
)

// Delta is a calendar-aware difference between two instants.
type Delta struct {
	Years, Months, Days      int
	Hours, Minutes, Seconds int
}

// Between returns the difference to - from. Whole months are counted on the
// calendar first, clamping the day to the end of shorter months, and the
// remainder is split into days, hours, minutes and seconds. When to is before
// from every component is negative.
func Between(from, to time.Time) Delta {
	if to.Before(from) {
		return Between(to, from).negate()
	}
	to = to.In(from.Location())

	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	anchor := addMonths(from, months)
	for months > 0 && anchor.After(to) {
		months--
		anchor = addMonths(from, months)
	}

	secs := int64(to.Sub(anchor) / time.Second)
	d := Delta{Years: months / 12, Months: months % 12}
	d.Days = int(secs / 86400)
	secs %= 86400
	d.Hours = int(secs / 3600)
	secs %= 3600
	d.Minutes = int(secs / 60)
	d.Seconds = int(secs % 60)
	return d
}

func (d Delta) negate() Delta {
	return Delta{-d.Years, -d.Months, -d.Days, -d.Hours, -d.Minutes, -d.Seconds}
}

// IsZero reports whether every component is zero.
func (d Delta) IsZero() bool { return d == Delta{} }

// String renders the non-zero components from largest to smallest, e.g.
// "1h 5m" or "2days 30s". A zero delta renders as "".
func (d Delta) String() string {
	parts := make([]string, 0, 6)
	add := func(n int, unit string) {
		if n != 0 {
			parts = append(parts, strconv.Itoa(n)+unit)
		}
	}
	add(d.Years, "yrs")
	add(d.Months, "months")
	add(d.Days, "days")
	add(d.Hours, "h")
	add(d.Minutes, "m")
	add(d.Seconds, "s")
	return strings.Join(parts, " ")
}

// FormatDuration is Between(from, to).String().
func FormatDuration(from, to time.Time) string {
	return Between(from, to).String()
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	y += total / 12
	month := time.Month(total%12 + 1)
	if last := daysIn(y, month); d > last {
		d = last
	}
	return time.Date(y, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
