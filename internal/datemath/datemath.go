// Package datemath holds the calendar-day helpers shared by the timeline,
// recurrence and stats packages. Every function works on the calendar fields
// of the time value in its own Location, so callers decide what "local" means
// by converting with t.In(loc) first.
package datemath

import (
	"time"
)

// GridCells is the number of day cells in a month grid: six Sunday-first weeks.
const GridCells = 42

// DateKeyLayout is the canonical YYYY-MM-DD day identity.
const DateKeyLayout = "2006-01-02"

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CalendarGrid returns the 42 consecutive days covering anchor's month,
// starting on the Sunday on or before the first of the month.
func CalendarGrid(anchor time.Time) []time.Time {
	first, _ := MonthRange(anchor)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	days := make([]time.Time, GridCells)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// MonthRange returns the first and last day (both at local midnight) of
// anchor's month. Both bounds are inclusive.
func MonthRange(anchor time.Time) (time.Time, time.Time) {
	y, m, _ := anchor.Date()
	loc := anchor.Location()
	start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	// Day 0 of the next month is the last day of this one.
	end := time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
	return start, end
}

// DateKey formats t's own calendar fields as YYYY-MM-DD. It never goes
// through UTC, so the key always agrees with t.Day().
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key as local midnight in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateKeyLayout, key, loc)
}

func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsPastDay reports whether t's day is strictly before today.
func IsPastDay(t time.Time) bool {
	return IsPastDayAt(t, time.Now())
}

// IsPastDayAt is IsPastDay with an explicit clock. now is read in t's
// Location.
func IsPastDayAt(t, now time.Time) bool {
	today := StartOfDay(now.In(t.Location()))
	return StartOfDay(t).Before(today)
}

// DaysUntil counts whole calendar days from now's day to t's day; negative
// when t is in the past.
func DaysUntil(t, now time.Time) int {
	a := StartOfDay(now.In(t.Location()))
	b := StartOfDay(t)
	// Calendar arithmetic through UTC dates so DST shifts do not leak in.
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// InRange reports whether t's day lies within [start, end], compared at day
// granularity.
func InRange(t, start, end time.Time) bool {
	d := StartOfDay(t)
	return !d.Before(StartOfDay(start)) && !d.After(StartOfDay(end))
}
