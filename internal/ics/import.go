package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamcal/internal/datemath"
	appLog "teamcal/internal/log"
	"teamcal/internal/model"
)

// importNamespace seeds the name-based ids of imported events so that
// importing the same feed twice updates rather than duplicates.
var importNamespace = uuid.MustParse("8f1c6d1e-2b6a-4d0e-9b8e-5a3f2c7d9e10")

var eventTypes = []string{"meeting", "task", "deadline", "reminder"}

// ImportOptions bounds an import.
type ImportOptions struct {
	// Location is the calendar whose days the events are placed on. If nil,
	// time.Local is used.
	Location *time.Location

	// RangeStart / RangeEnd bound recurring expansion. Both are required.
	RangeStart time.Time
	RangeEnd   time.Time

	MaxOccurrences int
	Source         Source
	CreatedBy      string
	OnTruncate     func(uid string)
}

// ImportResult holds event documents ready for store.Create. Each carries
// its id under "id".
type ImportResult struct {
	Records   []model.Fields
	Truncated []string
}

// Import reads an iCalendar payload and converts every occurrence in the
// window into an event document.
func Import(r io.Reader, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.RangeStart.IsZero() || opts.RangeEnd.IsZero() {
		return res, errors.New("import: range is required")
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return res, fmt.Errorf("import: read %s: %w", opts.Source.Name, err)
	}
	parsed, err := Parse(opts.Source, body, opts.Location)
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}

	exp, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation:        opts.Location,
		RangeStart:             opts.RangeStart,
		RangeEnd:               opts.RangeEnd,
		MaxOccurrencesPerEvent: opts.MaxOccurrences,
		OnTruncate:             opts.OnTruncate,
	})
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}

	res.Truncated = exp.TruncatedEvents
	res.Records = make([]model.Fields, 0, len(exp.Occurrences))
	for _, occ := range exp.Occurrences {
		f := model.EncodeEvent(occurrenceEvent(occ, opts.CreatedBy))
		f["id"] = OccurrenceID(occ)
		res.Records = append(res.Records, f)
	}
	appLog.Info("ics import converted", "source", opts.Source.Name, "events", len(res.Records), "truncated", len(res.Truncated))
	return res, nil
}

// OccurrenceID is the stable event id of one imported instance.
func OccurrenceID(occ Occurrence) string {
	return "ics_" + uuid.NewSHA1(importNamespace, []byte(occ.UID+"|"+occ.InstanceKey)).String()
}

func occurrenceEvent(occ Occurrence, createdBy string) model.Event {
	e := model.Event{
		Title:       strings.TrimSpace(occ.Summary),
		Type:        categoryType(occ.Categories),
		Status:      importStatus(occ.Status),
		Date:        datemath.DateKey(occ.Start),
		Location:    occ.Location,
		Description: occ.Description,
		CreatedBy:   createdBy,
	}
	if e.Title == "" {
		e.Title = "(untitled)"
	}
	if !occ.AllDay {
		e.Time = occ.Start.Format("15:04")
		e.Duration = int(occ.End.Sub(occ.Start).Minutes())
	}
	return model.NormalizeEvent(e)
}

// categoryType picks the first CATEGORIES value naming an event type.
func categoryType(categories []string) string {
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		for _, t := range eventTypes {
			if c == t {
				return t
			}
		}
	}
	return "meeting"
}

func importStatus(s string) string {
	switch strings.ToUpper(s) {
	case "CANCELLED":
		return "cancelled"
	case "TENTATIVE":
		return "pending"
	default:
		return "approved"
	}
}
