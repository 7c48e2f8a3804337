// Package render draws month views for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"teamcal/internal/model"
	"teamcal/internal/view"
)

const cellWidth = 10

var weekdayHeader = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var (
	todayColor     = color.New(color.FgCyan, color.Bold)
	outsideColor   = color.New(color.Faint)
	highlightColor = color.New(color.FgRed, color.Bold)
	requestColor   = color.New(color.FgYellow)
	headerColor    = color.New(color.Bold)
)

type Options struct {
	// Highlight lists case-insensitive keywords; items whose title contains
	// one are drawn in red.
	Highlight []string
	Now       time.Time
}

func (o Options) highlighted(title string) bool {
	t := strings.ToLower(title)
	for _, kw := range o.Highlight {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// Month writes the stats header and the six-week grid. Each cell shows the
// day number, the item count and, after "!", pending meeting requests.
func Month(w io.Writer, v view.MonthView, opts Options) error {
	var b strings.Builder

	headerColor.Fprintf(&b, "%s\n", v.Month.Format("January 2006"))
	writeStats(&b, v.Stats)
	b.WriteString("\n")

	for _, h := range weekdayHeader {
		fmt.Fprintf(&b, "%-*s", cellWidth, h)
	}
	b.WriteString("\n")

	for i, d := range v.Days {
		b.WriteString(cell(d, opts))
		if i%7 == 6 {
			b.WriteString("\n")
		}
	}

	if len(v.Upcoming) > 0 {
		b.WriteString("\nUpcoming\n")
		for _, it := range v.Upcoming {
			b.WriteString(itemLine(it, opts, true))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func cell(d view.Day, opts Options) string {
	text := fmt.Sprintf("%2d", d.Date.Day())
	if n := len(d.Items); n > 0 {
		text += fmt.Sprintf(" %d", n)
	}
	if d.PendingRequests > 0 {
		text += fmt.Sprintf(" !%d", d.PendingRequests)
	}
	padded := fmt.Sprintf("%-*s", cellWidth, text)

	switch {
	case d.Today:
		return todayColor.Sprint(padded)
	case !d.InMonth:
		return outsideColor.Sprint(padded)
	}
	for _, it := range d.Items {
		if opts.highlighted(it.Title) {
			return highlightColor.Sprint(padded)
		}
	}
	return padded
}

// Day writes the sidebar for one day: its items, then the pending meeting
// requests for that date.
func Day(w io.Writer, v view.MonthView, key string, opts Options) error {
	d, ok := v.Day(key)
	if !ok {
		return fmt.Errorf("day %s is not in the %s grid", key, v.Month.Format("2006-01"))
	}

	var b strings.Builder
	headerColor.Fprintf(&b, "%s\n", d.Date.Format("Monday, January 2 2006"))
	if len(d.Items) == 0 {
		b.WriteString("  nothing scheduled\n")
	}
	for _, it := range d.Items {
		b.WriteString(itemLine(it, opts, false))
	}

	requests := v.Timeline.RequestsForDate(key)
	if len(requests) > 0 {
		b.WriteString("Meeting requests\n")
		for _, r := range requests {
			b.WriteString(requestLine(r))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Stats writes just the header counters.
func Stats(w io.Writer, s model.Stats) error {
	var b strings.Builder
	writeStats(&b, s)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeStats(b *strings.Builder, s model.Stats) {
	fmt.Fprintf(b, "Events %s  Approved meetings %s  Upcoming deadlines %s  Pending requests %s\n",
		humanize.Comma(int64(s.TotalEvents)),
		humanize.Comma(int64(s.ApprovedMeetings)),
		humanize.Comma(int64(s.UpcomingDeadlines)),
		humanize.Comma(int64(s.PendingRequests)),
	)
}

func itemLine(it model.TimelineItem, opts Options, withDate bool) string {
	var b strings.Builder
	b.WriteString("  ")
	if withDate {
		b.WriteString(it.Date + " ")
	}
	clock := it.Time
	if clock == "" {
		clock = "--:--"
	}
	b.WriteString(clock + "  ")

	title := it.Title
	if opts.highlighted(title) {
		title = highlightColor.Sprint(title)
	}
	b.WriteString(title)

	switch it.Kind {
	case model.KindEvent:
		fmt.Fprintf(&b, "  [%s/%s, %d min]", it.Type(), it.Status, it.Duration())
		if it.Event != nil && it.Event.Location != "" {
			b.WriteString(" @ " + it.Event.Location)
		}
	case model.KindTaskOccurrence:
		fmt.Fprintf(&b, "  [task/%s %d%%]", it.Status, it.Task.Progress)
		b.WriteString(" " + it.Task.AssigneeName)
	}

	if !opts.Now.IsZero() {
		if start, ok := it.Start(opts.Now.Location()); ok {
			b.WriteString("  (" + humanize.RelTime(start, opts.Now, "ago", "from now") + ")")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func requestLine(r model.MeetingRequest) string {
	who := r.ClientName
	if who == "" {
		who = r.CompanyName
	}
	if who == "" {
		who = "Client"
	}
	return requestColor.Sprintf("  %s  %s: %s  [%s]", orDash(r.RequestedTime), who, r.Purpose, r.Status) + "\n"
}

func orDash(s string) string {
	if s == "" {
		return "--:--"
	}
	return s
}
