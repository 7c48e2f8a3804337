// Package stats computes the calendar header counters. They are global
// figures over the raw collections and never see the view's filters.
package stats

import (
	"strings"
	"time"

	"teamcal/internal/model"
)

// DefaultWindow is how far ahead a task deadline counts as upcoming.
const DefaultWindow = 7 * 24 * time.Hour

type Aggregator struct {
	// Window is the upcoming-deadline horizon. If zero, DefaultWindow is used.
	Window time.Duration
}

// Compute counts:
//   - totalEvents: every event
//   - approvedMeetings: events of type meeting with status approved
//   - upcomingDeadlines: non-archived, not-done tasks due in [now, now+Window]
//   - pendingRequests: meeting requests still pending
func (a Aggregator) Compute(events []model.Event, requests []model.MeetingRequest, tasks []model.Task, now time.Time) model.Stats {
	window := a.Window
	if window <= 0 {
		window = DefaultWindow
	}
	horizon := now.Add(window)

	var s model.Stats
	s.TotalEvents = len(events)
	for _, e := range events {
		if strings.EqualFold(e.Type, "meeting") && strings.EqualFold(e.Status, "approved") {
			s.ApprovedMeetings++
		}
	}
	for _, t := range tasks {
		if t.Archived || t.Status == model.TaskDone || t.DueDate.IsZero() {
			continue
		}
		if t.DueDate.Before(now) || t.DueDate.After(horizon) {
			continue
		}
		s.UpcomingDeadlines++
	}
	for _, r := range requests {
		if strings.EqualFold(string(r.Status), string(model.RequestPending)) {
			s.PendingRequests++
		}
	}
	return s
}

// Compute is Aggregator{}.Compute.
func Compute(events []model.Event, requests []model.MeetingRequest, tasks []model.Task, now time.Time) model.Stats {
	return Aggregator{}.Compute(events, requests, tasks, now)
}
