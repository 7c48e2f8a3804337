package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"teamcal/internal/model"
)

func TestUpcoming(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, kst)
	items := []model.TimelineItem{
		{ID: "past", Date: "2025-03-10", Time: "11:59"},
		{ID: "now", Date: "2025-03-10", Time: "12:00"},
		{ID: "tomorrow", Date: "2025-03-11", Time: "09:00"},
		{ID: "later", Date: "2025-03-20"},
		{ID: "soon", Date: "2025-03-10", Time: "18:00"},
		{ID: "undated"},
	}

	got := Upcoming(items, now, 3)
	var ids []string
	for _, it := range got {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"now", "soon", "tomorrow"}, ids)

	assert.Len(t, Upcoming(items, now, 0), 4)
}

func TestConflicts(t *testing.T) {
	existing := []model.Event{
		{ID: "a", Date: "2025-03-15", Time: "09:00", Duration: 60},
		{ID: "b", Date: "2025-03-15", Time: "10:30"},
		{ID: "c", Date: "2025-03-15"},
		{ID: "d", Date: "2025-03-16", Time: "09:30"},
	}

	cases := []struct {
		name      string
		candidate model.Event
		want      []string
	}{
		{"overlaps first", model.Event{Date: "2025-03-15", Time: "09:30", Duration: 30}, []string{"a"}},
		{"touching end is free", model.Event{Date: "2025-03-15", Time: "10:00", Duration: 30}, nil},
		{"default duration spans both", model.Event{Date: "2025-03-15", Time: "09:45"}, []string{"a", "b"}},
		{"untimed never conflicts", model.Event{Date: "2025-03-15"}, nil},
		{"self is skipped", model.Event{ID: "a", Date: "2025-03-15", Time: "09:00"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ids []string
			for _, e := range Conflicts(tc.candidate, existing, kst) {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}
