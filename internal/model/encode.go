package model

import "time"

// EncodeEvent is the inverse of DecodeEvent. Zero times and empty optional
// strings are left out; the id is not part of the body.
func EncodeEvent(e Event) Fields {
	f := Fields{
		"title":       e.Title,
		"type":        e.Type,
		"status":      e.Status,
		"priority":    e.Priority,
		"date":        e.Date,
		"time":        e.Time,
		"duration":    e.Duration,
		"attendeeIds": stringsOrEmpty(e.AttendeeIDs),
		"attendees":   stringsOrEmpty(e.Attendees),
	}
	putString(f, "clientId", e.ClientID)
	putString(f, "clientName", e.ClientName)
	putString(f, "location", e.Location)
	putString(f, "description", e.Description)
	putString(f, "cancelReason", e.CancelReason)
	putString(f, "cancelledBy", e.CancelledBy)
	putString(f, "createdBy", e.CreatedBy)
	putTime(f, "cancelledAt", e.CancelledAt)
	putTime(f, "completedAt", e.CompletedAt)
	putTime(f, "createdAt", e.CreatedAt)

	objs := make([]any, 0, len(e.Objectives))
	for _, o := range e.Objectives {
		objs = append(objs, map[string]any{"id": o.ID, "text": o.Text, "completed": o.Completed})
	}
	f["objectives"] = objs
	return f
}

func stringsOrEmpty(s []string) []any {
	out := make([]any, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	return out
}

func putString(f Fields, key, v string) {
	if v != "" {
		f[key] = v
	}
}

func putTime(f Fields, key string, t time.Time) {
	if !t.IsZero() {
		f[key] = t.Format(time.RFC3339Nano)
	}
}
