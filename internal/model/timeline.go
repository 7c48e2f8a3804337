package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the TimelineItem variants. Exactly one of the
// matching payload pointers is set.
type Kind string

const (
	KindEvent          Kind = "event"
	KindTaskOccurrence Kind = "task-occurrence"
	KindMeetingRequest Kind = "meeting-request"
)

// TaskItemType is the implicit type of every task occurrence.
const TaskItemType = "task"

// TaskOccurrenceTime is the time given to task occurrences: due by end of day.
const TaskOccurrenceTime = "23:59"

// TimelineItem is one renderable entry for a single calendar day.
type TimelineItem struct {
	Kind     Kind
	ID       string
	Title    string
	Date     string
	Time     string
	Priority string
	Status   string

	Event   *Event
	Task    *TaskOccurrence
	Request *MeetingRequest
}

// TaskOccurrence is the read-only projection of a Task on one due date.
type TaskOccurrence struct {
	TaskID       string
	ProjectID    string
	AssigneeID   string
	AssigneeType AssigneeType
	AssigneeName string
	ClientID     string
	Progress     int
	Description  string
}

// Type is the facet used by the type filter.
func (it TimelineItem) Type() string {
	switch it.Kind {
	case KindEvent:
		if it.Event == nil {
			return ""
		}
		return it.Event.Type
	case KindTaskOccurrence:
		return TaskItemType
	case KindMeetingRequest:
		return string(KindMeetingRequest)
	default:
		return ""
	}
}

// Duration returns the item's length in minutes.
func (it TimelineItem) Duration() int {
	switch it.Kind {
	case KindEvent:
		if it.Event != nil {
			return it.Event.Duration
		}
	case KindMeetingRequest:
		if it.Request != nil {
			return it.Request.Duration
		}
	}
	return 0
}

// SortTime is Time with the empty value sorted as midnight.
func (it TimelineItem) SortTime() string {
	if it.Time == "" {
		return "00:00"
	}
	return it.Time
}

// Start resolves Date and Time to an instant in loc.
func (it TimelineItem) Start(loc *time.Location) (time.Time, bool) {
	return parseDateTime(it.Date, it.SortTime(), loc)
}

// EventItem wraps a normalized event.
func EventItem(e Event) TimelineItem {
	e = NormalizeEvent(e)
	return TimelineItem{
		Kind:     KindEvent,
		ID:       e.ID,
		Title:    e.Title,
		Date:     e.Date,
		Time:     e.Time,
		Priority: e.Priority,
		Status:   e.Status,
		Event:    &e,
	}
}

// RequestItem projects a meeting request into the timeline shape used by
// the sidebar. Requests never enter the day grid as cards.
func RequestItem(r MeetingRequest) TimelineItem {
	title := r.Purpose
	if r.ClientName != "" {
		title = fmt.Sprintf("%s: %s", r.ClientName, r.Purpose)
	}
	return TimelineItem{
		Kind:     KindMeetingRequest,
		ID:       r.ID,
		Title:    title,
		Date:     r.RequestedDate,
		Time:     r.RequestedTime,
		Priority: strings.ToLower(r.Priority),
		Status:   strings.ToLower(string(r.Status)),
		Request:  &r,
	}
}

// NormalizeEvent lowercases the enum-like fields and fills defaults.
func NormalizeEvent(e Event) Event {
	e.Type = lowerOr(e.Type, "meeting")
	e.Status = lowerOr(e.Status, "pending")
	e.Priority = lowerOr(e.Priority, "medium")
	if e.Duration <= 0 {
		e.Duration = 60
	}
	if e.AttendeeIDs == nil {
		e.AttendeeIDs = []string{}
	}
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	if e.Objectives == nil {
		e.Objectives = []Objective{}
	}
	return e
}

// EventFromRequest builds the approved meeting created when staff accept a
// client's request.
func EventFromRequest(r MeetingRequest, createdBy string) Event {
	return NormalizeEvent(Event{
		Title:       "Client Meeting - " + r.Purpose,
		Type:        "meeting",
		Status:      string(RequestApproved),
		Priority:    r.Priority,
		Date:        r.RequestedDate,
		Time:        r.RequestedTime,
		Duration:    r.Duration,
		ClientID:    r.ClientID,
		ClientName:  r.ClientName,
		Attendees:   []string{r.ClientName},
		Location:    "Conference Room",
		Description: r.Purpose,
		CreatedBy:   createdBy,
		Objectives: []Objective{
			{ID: uuid.NewString(), Text: "Discuss project requirements"},
			{ID: uuid.NewString(), Text: "Review timeline"},
		},
	})
}

func lowerOr(s, def string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	return s
}

func parseDateTime(date, hhmm string, loc *time.Location) (time.Time, bool) {
	if date == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
