package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"teamcal/internal/datemath"
	appLog "teamcal/internal/log"
	"teamcal/internal/model"
)

const uidDomain = "@teamcal"

// Export renders timeline items as a PUBLISH calendar. Timed events and
// requests get DTSTART/DTEND from their duration; untimed events and task
// occurrences become all-day entries. Items with an unreadable date are
// skipped.
func Export(items []model.TimelineItem, loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendarFor("teamcal")
	cal.SetMethod(ical.MethodPublish)
	cal.SetCalscale("GREGORIAN")

	for _, it := range items {
		day, err := datemath.ParseDateKey(it.Date, loc)
		if err != nil {
			appLog.Warn("ics export: skipping item without date", "id", it.ID, "date", it.Date)
			continue
		}

		ev := cal.AddEvent(it.ID + uidDomain)
		ev.SetDtStampTime(now)
		ev.SetSummary(it.Title)

		start, timed := it.Start(loc)
		if it.Time == "" || it.Kind == model.KindTaskOccurrence {
			timed = false
		}
		if timed {
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(time.Duration(it.Duration()) * time.Minute))
		} else {
			ev.SetAllDayStartAt(day)
			ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		}

		if desc := description(it); desc != "" {
			ev.SetDescription(desc)
		}
		if it.Event != nil && it.Event.Location != "" {
			ev.SetLocation(it.Event.Location)
		}
		ev.SetStatus(exportStatus(it.Status))
		if t := it.Type(); t != "" {
			ev.AddCategory(t)
		}
	}

	return cal.Serialize()
}

func description(it model.TimelineItem) string {
	switch {
	case it.Event != nil:
		return it.Event.Description
	case it.Task != nil:
		return it.Task.Description
	case it.Request != nil:
		return it.Request.Purpose
	}
	return ""
}

func exportStatus(s string) ical.ObjectStatus {
	switch strings.ToLower(s) {
	case "cancelled":
		return ical.ObjectStatusCancelled
	case "pending":
		return ical.ObjectStatusTentative
	default:
		return ical.ObjectStatusConfirmed
	}
}
