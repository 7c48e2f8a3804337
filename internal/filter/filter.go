package filter

import (
	"strings"

	"teamcal/internal/model"
)

// All is the identity value of every facet. The empty string means the same.
const All = "all"

// Filters are the four independent facets of the calendar view.
type Filters struct {
	Type     string `yaml:"type" json:"type"`
	Status   string `yaml:"status" json:"status"`
	Project  string `yaml:"project" json:"project"`
	Employee string `yaml:"employee" json:"employee"`
}

// None is the filter set that keeps every item.
func None() Filters {
	return Filters{Type: All, Status: All, Project: All, Employee: All}
}

// Active reports whether any facet narrows the timeline.
func (f Filters) Active() bool {
	return !isAll(f.Type) || !isAll(f.Status) || !isAll(f.Project) || !isAll(f.Employee)
}

// Apply returns the items passing every facet, in input order. items is
// never modified and the result never aliases it.
func Apply(items []model.TimelineItem, f Filters) []model.TimelineItem {
	out := make([]model.TimelineItem, 0, len(items))
	for _, it := range items {
		if Match(it, f) {
			out = append(out, it)
		}
	}
	return out
}

// Match reports whether it passes all facets of f.
func Match(it model.TimelineItem, f Filters) bool {
	return matchType(it, f.Type) &&
		matchStatus(it, f.Status) &&
		matchProject(it, f.Project) &&
		matchEmployee(it, f.Employee)
}

func matchType(it model.TimelineItem, want string) bool {
	if isAll(want) {
		return true
	}
	return it.Type() == strings.ToLower(want)
}

func matchStatus(it model.TimelineItem, want string) bool {
	if isAll(want) {
		return true
	}
	return it.Status == strings.ToLower(want)
}

// Only task occurrences carry a project.
func matchProject(it model.TimelineItem, want string) bool {
	if isAll(want) {
		return true
	}
	return it.Kind == model.KindTaskOccurrence && it.Task != nil && it.Task.ProjectID == want
}

func matchEmployee(it model.TimelineItem, want string) bool {
	if isAll(want) {
		return true
	}
	switch it.Kind {
	case model.KindTaskOccurrence:
		return it.Task != nil && it.Task.AssigneeType == model.AssigneeUser && it.Task.AssigneeID == want
	case model.KindEvent:
		if it.Event == nil {
			return false
		}
		for _, id := range it.Event.AttendeeIDs {
			if id == want {
				return true
			}
		}
	}
	return false
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, All)
}
