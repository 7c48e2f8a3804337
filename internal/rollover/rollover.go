// Package rollover creates the next instance of completed recurring tasks.
package rollover

import (
	"context"
	"fmt"
	"sort"
	"time"

	"teamcal/internal/datemath"
	appLog "teamcal/internal/log"
	"teamcal/internal/metrics"
	"teamcal/internal/model"
	"teamcal/internal/recurrence"
	"teamcal/internal/store"
)

// Skip reasons reported in Result.Reason.
const (
	ReasonCreated   = "created"
	ReasonEnded     = "past end date"
	ReasonLimit     = "occurrence limit reached"
	ReasonDuplicate = "instance exists"
	ReasonFailed    = "create failed"
)

// Result describes what happened to one completed recurring task.
type Result struct {
	TaskID    string
	NewTaskID string
	DueDate   string // next due date, YYYY-MM-DD
	Reason    string
	Err       error
}

func (r Result) Created() bool { return r.NewTaskID != "" }

// Runner scans the tasks collection. Store is required; the rest default
// to time.Local, no metrics and time.Now.
type Runner struct {
	Store    store.Store
	Location *time.Location
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

type task struct {
	model.Task
	raw model.Fields
}

// Run creates at most one new To-Do instance per completed recurring task.
// A failed create is reported in its Result and does not stop the run.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	recs, err := r.Store.List(ctx, model.CollectionTasks, "")
	if err != nil {
		return nil, fmt.Errorf("rollover: list tasks: %w", err)
	}

	tasks := make([]task, 0, len(recs))
	// due dates already present per series, children only
	children := make(map[string]map[string]bool)
	for _, rec := range recs {
		t, err := model.DecodeTask(rec.ID, rec.Fields, loc)
		if err != nil {
			continue
		}
		tasks = append(tasks, task{Task: t, raw: rec.Fields})
		if t.ParentRecurringTaskID != "" {
			addChild(children, t.ParentRecurringTaskID, dueKey(t.DueDate))
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	var results []Result
	created := 0
	for _, t := range tasks {
		if !eligible(t.Task) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		series := t.SeriesID()
		next := recurrence.NextDueDate(t.DueDate, *t.Recurrence)
		res := Result{TaskID: t.ID, DueDate: datemath.DateKey(next)}

		p := t.Recurrence
		switch {
		case !p.EndDate.IsZero() && datemath.StartOfDay(next).After(datemath.StartOfDay(p.EndDate.In(next.Location()))):
			res.Reason = ReasonEnded
		case p.MaxOccurrences > 0 && len(children[series])+1 >= p.MaxOccurrences:
			res.Reason = ReasonLimit
		case children[series][res.DueDate]:
			res.Reason = ReasonDuplicate
		default:
			id, err := r.Store.Create(ctx, model.CollectionTasks, nextInstance(t, series, res.DueDate, now()))
			if err != nil {
				res.Reason = ReasonFailed
				res.Err = err
				appLog.Error("rollover: create failed", err, "task", t.ID, "due", res.DueDate)
				break
			}
			res.NewTaskID = id
			res.Reason = ReasonCreated
			addChild(children, series, res.DueDate)
			created++
		}
		results = append(results, res)
	}

	r.Metrics.RolledOver(created)
	appLog.Info("rollover completed", "completed_recurring", len(results), "created", created)
	return results, nil
}

func eligible(t model.Task) bool {
	return t.IsRecurring &&
		t.Status == model.TaskDone &&
		!t.CompletedAt.IsZero() &&
		!t.DueDate.IsZero() &&
		t.Recurrence != nil
}

// nextInstance copies the completed task's document and resets its
// progress. Recurrence settings are inherited unchanged.
func nextInstance(t task, series, due string, now time.Time) model.Fields {
	f := make(model.Fields, len(t.raw)+8)
	for k, v := range t.raw {
		f[k] = v
	}
	delete(f, "id")
	delete(f, "taskId")
	delete(f, "completedAt")

	today := datemath.DateKey(now)
	f["dueDate"] = due
	f["assignedDate"] = today
	f["visibleFrom"] = today
	f["status"] = string(model.TaskToDo)
	f["progressPercent"] = 0
	f["archived"] = false
	f["completionComment"] = ""
	f["assigneeStatus"] = map[string]any{}
	f["createdAt"] = now.Format(time.RFC3339)
	f["parentRecurringTaskId"] = series
	f["recurringOccurrenceCount"] = t.OccurrenceCount + 1
	return f
}

func addChild(m map[string]map[string]bool, series, due string) {
	if m[series] == nil {
		m[series] = make(map[string]bool)
	}
	m[series][due] = true
}

func dueKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return datemath.DateKey(t)
}
