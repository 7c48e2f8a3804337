package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/teambition/rrule-go"

	"teamcal/internal/datemath"
	appLog "teamcal/internal/log"
	"teamcal/internal/model"
)

const (
	defaultMaxOccurrencesPerTask = 5000
	defaultCacheSize             = 512
)

// rruleWeekdays is indexed by time.Weekday (Sunday = 0).
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Options controls expansion.
type Options struct {
	// Location is the calendar in which days are counted. If nil, time.Local
	// is used.
	Location *time.Location

	// MaxOccurrencesPerTask caps a single expansion. If zero,
	// defaultMaxOccurrencesPerTask is used.
	MaxOccurrencesPerTask int

	// CacheSize bounds the memoized expansions. Negative disables the cache.
	CacheSize int

	// OnTruncate, if set, is called whenever a task hits the cap.
	OnTruncate func(taskID string)
}

// Expander turns recurring task templates into concrete occurrence days
// within a caller-supplied window. It is safe for concurrent use.
type Expander struct {
	loc        *time.Location
	max        int
	cache      *lru.Cache[string, []string]
	onTruncate func(string)
}

func NewExpander(opts Options) *Expander {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxOccurrencesPerTask <= 0 {
		opts.MaxOccurrencesPerTask = defaultMaxOccurrencesPerTask
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = defaultCacheSize
	}

	x := &Expander{
		loc:        opts.Location,
		max:        opts.MaxOccurrencesPerTask,
		onTruncate: opts.OnTruncate,
	}
	if opts.CacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		x.cache, _ = lru.New[string, []string](opts.CacheSize)
	}
	return x
}

func (x *Expander) Location() *time.Location {
	return x.loc
}

// Expand returns the ascending date keys on which task falls within
// [windowStart, windowEnd], both compared at day granularity. A task that is
// not recurring yields its due day when that day is in the window. Tasks
// without a due date, exhausted patterns and unknown frequencies yield nil.
func (x *Expander) Expand(task model.Task, windowStart, windowEnd time.Time) []string {
	if task.DueDate.IsZero() {
		return nil
	}
	start := datemath.StartOfDay(windowStart.In(x.loc))
	end := datemath.StartOfDay(windowEnd.In(x.loc))
	anchor := datemath.StartOfDay(task.DueDate.In(x.loc))
	if end.Before(start) || anchor.After(end) {
		return nil
	}

	if !task.IsRecurring {
		if anchor.Before(start) {
			return nil
		}
		return []string{datemath.DateKey(anchor)}
	}

	pattern := model.RecurrencePattern{Frequency: model.FrequencyDaily}
	if task.Recurrence != nil {
		pattern = *task.Recurrence
	}

	key := cacheKey(task.ID, anchor, pattern, start, end)
	if x.cache != nil {
		if cached, ok := x.cache.Get(key); ok {
			return append([]string(nil), cached...)
		}
	}

	keys := x.expand(task.ID, anchor, pattern, start, end)

	if x.cache != nil {
		x.cache.Add(key, append([]string(nil), keys...))
	}
	return keys
}

func (x *Expander) expand(taskID string, anchor time.Time, p model.RecurrencePattern, start, end time.Time) []string {
	opt, err := x.ruleOptions(anchor, p)
	if err != nil {
		appLog.Warn("recurrence: pattern ignored", "task_id", taskID, "reason", err.Error())
		return nil
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		appLog.Warn("recurrence: failed to build rule", "task_id", taskID, "reason", err.Error())
		return nil
	}

	occTimes := r.Between(start, end, true)

	keys := make([]string, 0, len(occTimes))
	for _, occ := range occTimes {
		if p.SkipWeekends && isWeekend(occ.Weekday()) {
			continue
		}
		keys = append(keys, datemath.DateKey(occ.In(x.loc)))
	}

	if len(keys) > x.max {
		keys = keys[:x.max]
		appLog.Error("recurrence: truncated occurrences for task due to cap",
			errors.New("max occurrences reached"),
			"task_id", taskID,
			"cap", x.max,
		)
		if x.onTruncate != nil {
			x.onTruncate(taskID)
		}
	}
	return keys
}

func (x *Expander) ruleOptions(anchor time.Time, p model.RecurrencePattern) (rrule.ROption, error) {
	opt := rrule.ROption{
		Dtstart:  anchor,
		Interval: p.Interval,
	}
	if opt.Interval <= 0 {
		opt.Interval = 1
	}

	switch model.Frequency(strings.ToLower(string(p.Frequency))) {
	case model.FrequencyDaily, "":
		opt.Freq = rrule.DAILY
	case model.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case model.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	case model.FrequencyYearly:
		opt.Freq = rrule.YEARLY
	default:
		return opt, fmt.Errorf("unknown frequency %q", p.Frequency)
	}

	if opt.Freq == rrule.DAILY || opt.Freq == rrule.WEEKLY {
		for _, wd := range p.DaysOfWeek {
			if wd < time.Sunday || wd > time.Saturday {
				continue
			}
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
		}
	}
	if opt.Freq == rrule.MONTHLY && p.DayOfMonth >= 1 && p.DayOfMonth <= 31 {
		opt.Bymonthday = []int{p.DayOfMonth}
	}
	if p.MaxOccurrences > 0 {
		opt.Count = p.MaxOccurrences
	}
	if !p.EndDate.IsZero() {
		// Occurrences sit at midnight, so the end day itself stays included.
		opt.Until = datemath.StartOfDay(p.EndDate.In(x.loc))
	}
	return opt, nil
}

// NextDueDate steps due forward by one interval of p. When weekdays are
// selected the result moves to the next selected day (at most two weeks
// ahead); otherwise SkipWeekends moves Saturday and Sunday to Monday.
func NextDueDate(due time.Time, p model.RecurrencePattern) time.Time {
	n := p.Interval
	if n <= 0 {
		n = 1
	}

	var next time.Time
	switch model.Frequency(strings.ToLower(string(p.Frequency))) {
	case model.FrequencyWeekly:
		next = due.AddDate(0, 0, 7*n)
	case model.FrequencyMonthly:
		next = due.AddDate(0, n, 0)
	case model.FrequencyYearly:
		next = due.AddDate(n, 0, 0)
	default:
		next = due.AddDate(0, 0, n)
	}

	if len(p.DaysOfWeek) > 0 {
		const maxAttempts = 14
		for attempts := 0; attempts < maxAttempts && !containsWeekday(p.DaysOfWeek, next.Weekday()); attempts++ {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
	if p.SkipWeekends {
		switch next.Weekday() {
		case time.Saturday:
			next = next.AddDate(0, 0, 2)
		case time.Sunday:
			next = next.AddDate(0, 0, 1)
		}
	}
	return next
}

func cacheKey(taskID string, anchor time.Time, p model.RecurrencePattern, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d|%v|%d|%s|%d|%t|%s|%s",
		taskID,
		datemath.DateKey(anchor),
		p.Frequency,
		p.Interval,
		p.DaysOfWeek,
		p.DayOfMonth,
		endKey(p.EndDate),
		p.MaxOccurrences,
		p.SkipWeekends,
		datemath.DateKey(start),
		datemath.DateKey(end),
	)
}

func endKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func isWeekend(wd time.Weekday) bool {
	return wd == time.Saturday || wd == time.Sunday
}

func containsWeekday(days []time.Weekday, wd time.Weekday) bool {
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}
