package datemath

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Timestamp is satisfied by store-native timestamp values that know how to
// turn themselves into a time.Time (e.g. timestamppb.Timestamp).
type Timestamp interface {
	AsTime() time.Time
}

var stringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateKeyLayout,
}

// ToLocalDate collapses the timestamp shapes a document store may hand back
// into a time.Time in loc. Accepted: time.Time, *time.Time, Timestamp,
// {seconds[, nanoseconds]} maps, ISO-8601 strings and epoch milliseconds.
// Anything else, including zero times and blank strings, yields false.
//
// Strings without an offset are read as calendar-local in loc.
func ToLocalDate(v any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.In(loc), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.In(loc), true
	case Timestamp:
		tt := t.AsTime()
		if tt.IsZero() {
			return time.Time{}, false
		}
		return tt.In(loc), true
	case map[string]any:
		return fromSecondsMap(t, loc)
	case string:
		return fromString(t, loc)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromMillis(f, loc)
	case int:
		return fromMillis(float64(t), loc)
	case int64:
		return fromMillis(float64(t), loc)
	case float64:
		return fromMillis(t, loc)
	default:
		return time.Time{}, false
	}
}

func fromSecondsMap(m map[string]any, loc *time.Location) (time.Time, bool) {
	raw, ok := m["seconds"]
	if !ok {
		// Admin SDK JSON exports use underscored keys.
		raw, ok = m["_seconds"]
	}
	if !ok {
		return time.Time{}, false
	}
	secs, ok := number(raw)
	if !ok {
		return time.Time{}, false
	}
	var nanos float64
	if n, ok := m["nanoseconds"]; ok {
		nanos, _ = number(n)
	} else if n, ok := m["_nanoseconds"]; ok {
		nanos, _ = number(n)
	}
	return time.Unix(int64(secs), int64(nanos)).In(loc), true
}

func fromString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range stringLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

func fromMillis(ms float64, loc *time.Location) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).In(loc), true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
