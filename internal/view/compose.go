// Package view assembles what the calendar screen shows: the 42-cell month
// grid, the header counters and the upcoming list. Compose is a pure
// function of a snapshot; Dashboard keeps a snapshot current from the store.
package view

import (
	"time"

	"teamcal/internal/datemath"
	"teamcal/internal/filter"
	"teamcal/internal/model"
	"teamcal/internal/stats"
	"teamcal/internal/timeline"
)

// Snapshot is the latest copy of every collection the calendar reads.
type Snapshot struct {
	Events          []model.Event
	Tasks           []model.Task
	MeetingRequests []model.MeetingRequest
	Clients         []model.Client
	Users           []model.Resource
	Projects        []model.Project
}

type Options struct {
	Filters filter.Filters

	// UpcomingLimit caps MonthView.Upcoming. Zero means five.
	UpcomingLimit int
	// StatsWindow is the upcoming-deadline horizon. Zero means seven days.
	StatsWindow time.Duration
	// ManagerID, when set, scopes task occurrences to that manager's projects.
	ManagerID string
}

type Day struct {
	Key     string
	Date    time.Time
	InMonth bool
	Today   bool
	Past    bool
	Items   []model.TimelineItem
	// PendingRequests is the badge count of pending meeting requests.
	PendingRequests int
}

type MonthView struct {
	Month    time.Time
	Days     []Day
	Items    []model.TimelineItem // filtered, sorted
	Stats    model.Stats
	Upcoming []model.TimelineItem
	Filters  filter.Filters

	// Timeline is the unfiltered merge the view was cut from.
	Timeline timeline.Timeline
}

// Day returns the grid cell for key.
func (v MonthView) Day(key string) (Day, bool) {
	for _, d := range v.Days {
		if d.Key == key {
			return d, true
		}
	}
	return Day{}, false
}

// Compose builds the month view at now. Stats are computed over the raw
// snapshot and are not affected by opts.Filters.
func Compose(b *timeline.Builder, snap Snapshot, month, now time.Time, opts Options) MonthView {
	loc := b.Expander.Location()
	now = now.In(loc)

	scoped := *b
	if opts.ManagerID != "" {
		scoped.ProjectScope = timeline.ManagedProjectIDs(snap.Projects, opts.ManagerID)
	}
	tl := scoped.Build(timeline.Sources{
		Events:          snap.Events,
		Tasks:           snap.Tasks,
		MeetingRequests: snap.MeetingRequests,
		Clients:         snap.Clients,
	}, month)

	items := filter.Apply(tl.Items, opts.Filters)
	byDay := timeline.GroupByDate(items)

	grid := datemath.CalendarGrid(tl.Month)
	days := make([]Day, 0, len(grid))
	for _, d := range grid {
		key := datemath.DateKey(d)
		days = append(days, Day{
			Key:             key,
			Date:            d,
			InMonth:         d.Month() == tl.Month.Month(),
			Today:           datemath.IsSameDay(d, now),
			Past:            datemath.IsPastDayAt(d, now),
			Items:           byDay[key],
			PendingRequests: tl.PendingRequestCount(key),
		})
	}

	return MonthView{
		Month:    tl.Month,
		Days:     days,
		Items:    items,
		Stats:    stats.Aggregator{Window: opts.StatsWindow}.Compute(snap.Events, snap.MeetingRequests, snap.Tasks, now),
		Upcoming: timeline.Upcoming(items, now, opts.UpcomingLimit),
		Filters:  opts.Filters,
		Timeline: tl,
	}
}
