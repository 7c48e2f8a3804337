package timeline

import (
	"sort"
	"strings"
	"time"

	"teamcal/internal/datemath"
	"teamcal/internal/model"
	"teamcal/internal/recurrence"
)

const (
	teamMemberName    = "Team Member"
	unknownClientName = "Unknown"
)

// Sources is one consistent snapshot of the raw collections.
type Sources struct {
	Events          []model.Event
	Tasks           []model.Task
	MeetingRequests []model.MeetingRequest
	Clients         []model.Client
}

// Timeline is the merged, day-sorted view of one visible month. Meeting
// requests ride along as a separate per-day channel and never appear in
// Items.
type Timeline struct {
	// Month is local midnight of the first day of the visible month.
	Month time.Time
	Items []model.TimelineItem
	// SkippedTasks counts non-archived tasks dropped for lacking a due date.
	SkippedTasks int

	requests []model.MeetingRequest
}

// Builder merges events and tasks into a Timeline. A Builder holds no state
// between calls apart from the expander's memoized expansions.
type Builder struct {
	Expander *recurrence.Expander

	// ProjectScope, when non-nil, keeps only task occurrences whose project
	// is listed (the manager view). Events are never scoped.
	ProjectScope []string
}

func NewBuilder(x *recurrence.Expander) *Builder {
	return &Builder{Expander: x}
}

// Build normalizes every event, expands recurring task templates over the
// visible month and emits one occurrence for every other dated task. The
// output is sorted by date, then time.
func (b *Builder) Build(src Sources, visibleMonth time.Time) Timeline {
	loc := b.Expander.Location()
	monthStart, monthEnd := datemath.MonthRange(visibleMonth.In(loc))

	out := Timeline{
		Month:    monthStart,
		Items:    make([]model.TimelineItem, 0, len(src.Events)+len(src.Tasks)),
		requests: src.MeetingRequests,
	}

	for _, e := range src.Events {
		out.Items = append(out.Items, model.EventItem(e))
	}

	clientsByID := make(map[string]model.Client, len(src.Clients))
	for _, c := range src.Clients {
		clientsByID[c.ID] = c
	}
	var scope map[string]bool
	if b.ProjectScope != nil {
		scope = make(map[string]bool, len(b.ProjectScope))
		for _, id := range b.ProjectScope {
			scope[id] = true
		}
	}

	for _, task := range src.Tasks {
		if task.Archived {
			continue
		}
		if task.DueDate.IsZero() {
			out.SkippedTasks++
			continue
		}
		if scope != nil && !scope[task.ProjectID] {
			continue
		}

		name := assigneeName(task, clientsByID)
		if task.IsRecurringTemplate() {
			for _, key := range b.Expander.Expand(task, monthStart, monthEnd) {
				out.Items = append(out.Items, occurrence(task, key, name))
			}
			continue
		}
		out.Items = append(out.Items, occurrence(task, datemath.DateKey(task.DueDate.In(loc)), name))
	}

	sortItems(out.Items)
	return out
}

// RequestsForDate returns the pending meeting requests asking for exactly
// key.
func (t Timeline) RequestsForDate(key string) []model.MeetingRequest {
	return RequestsForDate(t.requests, key)
}

// PendingRequestCount is the day-cell badge value for key.
func (t Timeline) PendingRequestCount(key string) int {
	return len(t.RequestsForDate(key))
}

// RequestsForDate filters requests to the pending ones for key. Approved
// requests already exist as events and rejected ones need no action.
func RequestsForDate(requests []model.MeetingRequest, key string) []model.MeetingRequest {
	var out []model.MeetingRequest
	for _, r := range requests {
		if r.RequestedDate == key && r.Status == model.RequestPending {
			out = append(out, r)
		}
	}
	return out
}

// ItemsForDate returns the items on key ordered by time.
func ItemsForDate(items []model.TimelineItem, key string) []model.TimelineItem {
	var out []model.TimelineItem
	for _, it := range items {
		if it.Date == key {
			out = append(out, it)
		}
	}
	sortItems(out)
	return out
}

// GroupByDate buckets items by their date key, keeping input order inside
// each bucket. Items without a date are dropped.
func GroupByDate(items []model.TimelineItem) map[string][]model.TimelineItem {
	grouped := make(map[string][]model.TimelineItem)
	for _, it := range items {
		if it.Date == "" {
			continue
		}
		grouped[it.Date] = append(grouped[it.Date], it)
	}
	return grouped
}

// ManagedProjectIDs lists the projects run by managerID.
func ManagedProjectIDs(projects []model.Project, managerID string) []string {
	ids := []string{}
	for _, p := range projects {
		if p.ProjectManagerID == managerID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func occurrence(task model.Task, key, name string) model.TimelineItem {
	status, progress := taskStatus(task.Status)
	occ := &model.TaskOccurrence{
		TaskID:       task.ID,
		ProjectID:    task.ProjectID,
		AssigneeID:   task.AssigneeID,
		AssigneeType: task.AssigneeType,
		AssigneeName: name,
		Progress:     progress,
		Description:  "Task assigned to " + name,
	}
	if task.AssigneeType == model.AssigneeClient {
		occ.ClientID = task.AssigneeID
	}

	priority := strings.ToLower(strings.TrimSpace(task.Priority))
	if priority == "" {
		priority = "medium"
	}

	return model.TimelineItem{
		Kind:     model.KindTaskOccurrence,
		ID:       "task_" + task.ID + "_" + key,
		Title:    "Task: " + task.Title,
		Date:     key,
		Time:     model.TaskOccurrenceTime,
		Priority: priority,
		Status:   status,
		Task:     occ,
	}
}

func taskStatus(s model.TaskStatus) (string, int) {
	switch s {
	case model.TaskDone:
		return "completed", 100
	case model.TaskInProgress:
		return "pending", 50
	default:
		return "pending", 0
	}
}

func assigneeName(task model.Task, clients map[string]model.Client) string {
	if task.AssigneeType != model.AssigneeClient {
		return teamMemberName
	}
	c, ok := clients[task.AssigneeID]
	if !ok {
		return unknownClientName
	}
	if c.ClientName != "" {
		return c.ClientName
	}
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return unknownClientName
}

func sortItems(items []model.TimelineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date < items[j].Date
		}
		return items[i].SortTime() < items[j].SortTime()
	})
}
