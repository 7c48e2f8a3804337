package datemath

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seoul = time.FixedZone("KST", 9*60*60)

func TestCalendarGrid(t *testing.T) {
	anchors := []time.Time{
		time.Date(2025, time.January, 15, 10, 0, 0, 0, seoul),  // starts Wednesday
		time.Date(2025, time.June, 1, 0, 0, 0, 0, seoul),       // starts Sunday
		time.Date(2026, time.February, 28, 23, 0, 0, 0, seoul), // starts Sunday, 28 days
		time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
	}

	for _, anchor := range anchors {
		grid := CalendarGrid(anchor)
		require.Len(t, grid, GridCells)
		assert.Equal(t, time.Sunday, grid[0].Weekday(), "anchor %s", anchor)

		for i := 1; i < len(grid); i++ {
			assert.Equal(t, 1, DaysUntil(grid[i], grid[i-1]), "gap at %d for %s", i, anchor)
		}

		first, last := MonthRange(anchor)
		assert.True(t, InRange(first, grid[0], grid[len(grid)-1]))
		assert.True(t, InRange(last, grid[0], grid[len(grid)-1]))
	}
}

func TestCalendarGridStartsOnFirstWhenSunday(t *testing.T) {
	grid := CalendarGrid(time.Date(2025, time.June, 20, 0, 0, 0, 0, seoul))
	assert.Equal(t, "2025-06-01", DateKey(grid[0]))
	assert.Equal(t, "2025-07-12", DateKey(grid[41]))
}

func TestCalendarGridPadsPreviousMonth(t *testing.T) {
	grid := CalendarGrid(time.Date(2025, time.January, 1, 0, 0, 0, 0, seoul))
	assert.Equal(t, "2024-12-29", DateKey(grid[0]))
	assert.Equal(t, "2025-01-01", DateKey(grid[3]))
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2024, time.February, 10, 15, 30, 0, 0, seoul))
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, seoul), start)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, seoul), end)
}

func TestDateKeyUsesOwnCalendarFields(t *testing.T) {
	// 23:30 in Seoul is still the previous day in UTC.
	late := time.Date(2025, time.March, 15, 23, 30, 0, 0, seoul)
	assert.Equal(t, "2025-03-15", DateKey(late))
	assert.Equal(t, late.Day(), 15)

	early := time.Date(2025, time.March, 15, 0, 5, 0, 0, seoul)
	assert.Equal(t, "2025-03-15", DateKey(early))
	assert.Equal(t, "2025-03-14", DateKey(early.UTC()))
}

func TestParseDateKey(t *testing.T) {
	d, err := ParseDateKey("2025-03-15", seoul)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 15, 0, 0, 0, 0, seoul), d)

	_, err = ParseDateKey("15/03/2025", seoul)
	assert.Error(t, err)
}

func TestIsSameDay(t *testing.T) {
	a := time.Date(2025, time.March, 15, 0, 0, 0, 0, seoul)
	b := time.Date(2025, time.March, 15, 23, 59, 0, 0, seoul)
	c := time.Date(2025, time.March, 16, 0, 0, 0, 0, seoul)
	assert.True(t, IsSameDay(a, b))
	assert.False(t, IsSameDay(b, c))
}

func TestIsPastDayAt(t *testing.T) {
	now := time.Date(2025, time.March, 15, 9, 0, 0, 0, seoul)

	assert.True(t, IsPastDayAt(time.Date(2025, time.March, 14, 23, 59, 0, 0, seoul), now))
	assert.False(t, IsPastDayAt(time.Date(2025, time.March, 15, 0, 0, 0, 0, seoul), now))
	assert.False(t, IsPastDayAt(time.Date(2025, time.March, 16, 0, 0, 0, 0, seoul), now))
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, time.January, 10, 18, 0, 0, 0, seoul)
	assert.Equal(t, 5, DaysUntil(time.Date(2026, time.January, 15, 1, 0, 0, 0, seoul), now))
	assert.Equal(t, -5, DaysUntil(time.Date(2026, time.January, 5, 0, 0, 0, 0, seoul), now))
	assert.Equal(t, 0, DaysUntil(now, now))
}

type fakeTimestamp struct{ t time.Time }

func (f fakeTimestamp) AsTime() time.Time { return f.t }

func TestToLocalDate(t *testing.T) {
	want := time.Date(2025, time.January, 6, 9, 30, 0, 0, seoul)

	cases := []struct {
		name string
		in   any
	}{
		{"time", want},
		{"pointer", &want},
		{"store timestamp", fakeTimestamp{want.UTC()}},
		{"seconds map", map[string]any{"seconds": float64(want.Unix())}},
		{"admin seconds map", map[string]any{"_seconds": want.Unix(), "_nanoseconds": 0}},
		{"rfc3339", "2025-01-06T00:30:00Z"},
		{"local datetime", "2025-01-06T09:30"},
		{"epoch millis", want.UnixMilli()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ToLocalDate(tc.in, seoul)
			require.True(t, ok)
			assert.True(t, want.Equal(got), "got %s", got)
			assert.Equal(t, seoul, got.Location())
		})
	}
}

func TestToLocalDateDateOnlyIsCalendarLocal(t *testing.T) {
	got, ok := ToLocalDate("2025-01-06", seoul)
	require.True(t, ok)
	assert.Equal(t, "2025-01-06", DateKey(got))
	assert.Equal(t, 0, got.Hour())
}

func TestToLocalDateRejectsGarbage(t *testing.T) {
	for _, in := range []any{nil, "", "   ", "not a date", time.Time{}, (*time.Time)(nil), map[string]any{"nanos": 1}, []string{"x"}, true} {
		_, ok := ToLocalDate(in, seoul)
		assert.False(t, ok, "%#v", in)
	}
}
