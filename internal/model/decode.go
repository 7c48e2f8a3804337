package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"teamcal/internal/datemath"
)

// ErrMissingID is returned for documents that carry no id. Every other
// malformed field is defaulted so one bad document cannot blank the calendar.
var ErrMissingID = errors.New("record has no id")

// Fields is the raw document body delivered by the store.
type Fields = map[string]any

func DecodeEvent(id string, f Fields, loc *time.Location) (Event, error) {
	if id == "" {
		return Event{}, ErrMissingID
	}
	e := Event{
		ID:           id,
		Title:        str(f, "title"),
		Type:         str(f, "type"),
		Status:       str(f, "status"),
		Priority:     str(f, "priority"),
		Date:         dateKeyField(f, "date", loc),
		Time:         str(f, "time"),
		Duration:     intField(f, "duration"),
		ClientID:     str(f, "clientId"),
		ClientName:   str(f, "clientName"),
		AttendeeIDs:  strSlice(f, "attendeeIds"),
		Attendees:    strSlice(f, "attendees"),
		Location:     str(f, "location"),
		Description:  str(f, "description"),
		Objectives:   objectives(f["objectives"]),
		CancelReason: str(f, "cancelReason"),
		CancelledBy:  str(f, "cancelledBy"),
		CancelledAt:  timeField(f, "cancelledAt", loc),
		CompletedAt:  timeField(f, "completedAt", loc),
		CreatedAt:    timeField(f, "createdAt", loc),
		CreatedBy:    str(f, "createdBy"),
	}
	return NormalizeEvent(e), nil
}

func DecodeTask(id string, f Fields, loc *time.Location) (Task, error) {
	if id == "" {
		return Task{}, ErrMissingID
	}
	t := Task{
		ID:                    id,
		Title:                 str(f, "title"),
		Description:           str(f, "description"),
		ProjectID:             str(f, "projectId"),
		AssigneeID:            str(f, "assigneeId"),
		AssigneeType:          AssigneeType(strings.ToLower(str(f, "assigneeType"))),
		Status:                TaskStatus(str(f, "status")),
		Priority:              str(f, "priority"),
		DueDate:               timeField(f, "dueDate", loc),
		CreatedAt:             timeField(f, "createdAt", loc),
		CompletedAt:           timeField(f, "completedAt", loc),
		Archived:              boolField(f, "archived"),
		IsRecurring:           boolField(f, "isRecurring"),
		ParentRecurringTaskID: str(f, "parentRecurringTaskId"),
		OccurrenceCount:       intField(f, "recurringOccurrenceCount"),
	}
	if t.AssigneeType == "" {
		t.AssigneeType = AssigneeUser
	}
	if t.Status == "" {
		t.Status = TaskToDo
	}
	if t.IsRecurring {
		t.Recurrence = decodeRecurrence(f, loc)
	}
	return t, nil
}

func DecodeMeetingRequest(id string, f Fields, loc *time.Location) (MeetingRequest, error) {
	if id == "" {
		return MeetingRequest{}, ErrMissingID
	}
	r := MeetingRequest{
		ID:              id,
		ClientID:        str(f, "clientId"),
		ClientName:      str(f, "clientName"),
		CompanyName:     str(f, "companyName"),
		RequestedDate:   dateKeyField(f, "requestedDate", loc),
		RequestedTime:   str(f, "requestedTime"),
		Duration:        intField(f, "duration"),
		Purpose:         str(f, "purpose"),
		Priority:        lowerOr(str(f, "priority"), "medium"),
		Status:          MeetingRequestStatus(lowerOr(str(f, "status"), string(RequestPending))),
		RequestedAt:     timeField(f, "requestedAt", loc),
		RejectionReason: str(f, "rejectionReason"),
		RejectedBy:      str(f, "rejectedBy"),
		RejectedAt:      timeField(f, "rejectedAt", loc),
		Email:           str(f, "email"),
		Phone:           str(f, "phone"),
	}
	if r.Duration <= 0 {
		r.Duration = 60
	}
	return r, nil
}

func DecodeClient(id string, f Fields) (Client, error) {
	if id == "" {
		return Client{}, ErrMissingID
	}
	return Client{
		ID:          id,
		ClientName:  str(f, "clientName"),
		CompanyName: str(f, "companyName"),
		Email:       str(f, "email"),
	}, nil
}

func DecodeResource(id string, f Fields) (Resource, error) {
	if id == "" {
		return Resource{}, ErrMissingID
	}
	r := Resource{
		ID:    id,
		Name:  str(f, "name"),
		Email: str(f, "email"),
		Role:  str(f, "role"),
	}
	if r.Name == "" {
		r.Name = r.Email
	}
	if r.Name == "" {
		r.Name = "Unknown"
	}
	if r.Role == "" {
		r.Role = "resource"
	}
	return r, nil
}

// DecodeProject returns ok=false for soft-deleted projects.
func DecodeProject(id string, f Fields) (Project, bool, error) {
	if id == "" {
		return Project{}, false, ErrMissingID
	}
	if boolField(f, "deleted") || boolField(f, "isDeleted") {
		return Project{}, false, nil
	}
	name := str(f, "projectName")
	if name == "" {
		name = str(f, "name")
	}
	return Project{
		ID:               id,
		Name:             name,
		ProjectManagerID: str(f, "projectManagerId"),
	}, true, nil
}

// decodeRecurrence accepts the nested recurrencePattern map as well as the
// flat recurring* fields written by the task forms.
func decodeRecurrence(f Fields, loc *time.Location) *RecurrencePattern {
	if nested, ok := f["recurrencePattern"].(map[string]any); ok {
		p := &RecurrencePattern{
			Frequency:      Frequency(strings.ToLower(str(nested, "frequency"))),
			Interval:       intField(nested, "interval"),
			DaysOfWeek:     weekdays(nested["daysOfWeek"]),
			DayOfMonth:     intField(nested, "dayOfMonth"),
			EndDate:        timeField(nested, "endDate", loc),
			MaxOccurrences: intField(nested, "maxOccurrences"),
			SkipWeekends:   boolField(nested, "skipWeekends") || boolField(f, "skipWeekends"),
		}
		return p
	}

	p := &RecurrencePattern{
		Frequency:    Frequency(strings.ToLower(str(f, "recurringPattern"))),
		Interval:     intField(f, "recurringInterval"),
		DaysOfWeek:   weekdays(f["selectedWeekDays"]),
		SkipWeekends: boolField(f, "skipWeekends"),
	}
	switch strings.ToLower(str(f, "recurringEndType")) {
	case "date":
		p.EndDate = timeField(f, "recurringEndDate", loc)
	case "after":
		p.MaxOccurrences = intField(f, "recurringEndAfter")
	case "":
		// Older documents set the end fields without a type.
		p.EndDate = timeField(f, "recurringEndDate", loc)
		p.MaxOccurrences = intField(f, "recurringEndAfter")
	}
	return p
}

func objectives(v any) []Objective {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Objective, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Objective{
			ID:        str(m, "id"),
			Text:      str(m, "text"),
			Completed: boolField(m, "completed"),
		})
	}
	return out
}

func str(f Fields, key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func intField(f Fields, key string) int {
	n, _ := toInt(f[key])
	return n
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			return int(f), ferr == nil
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func boolField(f Fields, key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func strSlice(f Fields, key string) []string {
	switch v := f[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func weekdays(v any) []time.Weekday {
	var raw []any
	switch list := v.(type) {
	case []any:
		raw = list
	case []int:
		for _, n := range list {
			raw = append(raw, n)
		}
	default:
		return nil
	}
	out := make([]time.Weekday, 0, len(raw))
	for _, item := range raw {
		n, ok := toInt(item)
		if !ok || n < 0 || n > 6 {
			continue
		}
		out = append(out, time.Weekday(n))
	}
	return out
}

func timeField(f Fields, key string, loc *time.Location) time.Time {
	t, ok := datemath.ToLocalDate(f[key], loc)
	if !ok {
		return time.Time{}
	}
	return t
}

// dateKeyField reads a day field that is normally a YYYY-MM-DD string but may
// have been written as a timestamp.
func dateKeyField(f Fields, key string, loc *time.Location) string {
	if s, ok := f[key].(string); ok {
		s = strings.TrimSpace(s)
		if _, err := datemath.ParseDateKey(s, loc); err == nil {
			return s
		}
	}
	t, ok := datemath.ToLocalDate(f[key], loc)
	if !ok {
		return ""
	}
	return datemath.DateKey(t)
}
