package timeline

import (
	"sort"
	"time"

	"teamcal/internal/model"
)

const defaultUpcomingLimit = 5

// Upcoming returns the first limit items starting at or after now, soonest
// first. A non-positive limit means the default of five.
func Upcoming(items []model.TimelineItem, now time.Time, limit int) []model.TimelineItem {
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	loc := now.Location()

	type dated struct {
		item  model.TimelineItem
		start time.Time
	}
	var pending []dated
	for _, it := range items {
		start, ok := it.Start(loc)
		if !ok || start.Before(now) {
			continue
		}
		pending = append(pending, dated{item: it, start: start})
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].start.Before(pending[j].start)
	})

	if len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]model.TimelineItem, 0, len(pending))
	for _, d := range pending {
		out = append(out, d.item)
	}
	return out
}

// Conflicts returns the events on candidate's day whose [start, start+duration)
// overlaps the candidate's. Events without a time, and the candidate itself,
// never conflict. Durations default to 60 minutes.
func Conflicts(candidate model.Event, existing []model.Event, loc *time.Location) []model.Event {
	if candidate.Date == "" || candidate.Time == "" {
		return nil
	}
	newStart, newEnd, ok := span(candidate, loc)
	if !ok {
		return nil
	}

	var out []model.Event
	for _, e := range existing {
		if candidate.ID != "" && e.ID == candidate.ID {
			continue
		}
		if e.Date != candidate.Date || e.Time == "" {
			continue
		}
		start, end, ok := span(e, loc)
		if !ok {
			continue
		}
		if newStart.Before(end) && newEnd.After(start) {
			out = append(out, e)
		}
	}
	return out
}

func span(e model.Event, loc *time.Location) (time.Time, time.Time, bool) {
	start, ok := model.TimelineItem{Date: e.Date, Time: e.Time}.Start(loc)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	d := e.Duration
	if d <= 0 {
		d = 60
	}
	return start, start.Add(time.Duration(d) * time.Minute), true
}
