package view

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamcal/internal/filter"
	"teamcal/internal/metrics"
	"teamcal/internal/model"
	"teamcal/internal/recurrence"
	"teamcal/internal/store"
	"teamcal/internal/timeline"
)

var (
	kst   = time.FixedZone("KST", 9*60*60)
	now   = time.Date(2025, time.March, 10, 12, 0, 0, 0, kst)
	march = time.Date(2025, time.March, 1, 0, 0, 0, 0, kst)
)

func newBuilder() *timeline.Builder {
	return timeline.NewBuilder(recurrence.NewExpander(recurrence.Options{Location: kst}))
}

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()
	fixtures := map[string][]model.Fields{
		model.CollectionEvents: {
			{"id": "e1", "title": "Kickoff", "type": "Meeting", "status": "APPROVED", "date": "2025-03-15", "time": "10:00", "attendeeIds": []any{"u1"}},
			{"id": "e2", "title": "Release", "type": "deadline", "date": "2025-03-20"},
		},
		model.CollectionTasks: {
			{"id": "t1", "title": "Report", "projectId": "P1", "assigneeId": "u1", "assigneeType": "user", "dueDate": "2025-03-15", "status": "To-Do"},
			{"id": "t2", "title": "Invoice", "projectId": "P2", "assigneeId": "c1", "assigneeType": "client", "dueDate": "2025-03-12", "status": "In Progress"},
			{"id": "t3", "title": "Old", "projectId": "P1", "dueDate": "2025-03-11", "archived": true},
			{"id": "t4", "title": "Weekly sync notes", "projectId": "P2", "dueDate": "2025-03-03", "isRecurring": true,
				"recurrencePattern": map[string]any{"frequency": "weekly", "daysOfWeek": []any{1}}},
		},
		model.CollectionMeetingRequests: {
			{"id": "r1", "clientId": "c1", "clientName": "Acme", "requestedDate": "2025-03-15", "requestedTime": "14:00", "purpose": "Scope", "status": "pending"},
			{"id": "r2", "clientId": "c1", "requestedDate": "2025-03-15", "status": "rejected"},
		},
		model.CollectionClients: {
			{"id": "c1", "companyName": "Acme Corp"},
		},
		model.CollectionUsers: {
			{"id": "u1", "email": "dev@example.com"},
		},
		model.CollectionProjects: {
			{"id": "P1", "projectName": "Portal", "projectManagerId": "m1"},
			{"id": "P2", "name": "Billing", "projectManagerId": "m2"},
			{"id": "P3", "name": "Gone", "projectManagerId": "m1", "isDeleted": true},
		},
	}
	for collection, recs := range fixtures {
		for _, f := range recs {
			_, err := st.Create(ctx, collection, f)
			require.NoError(t, err)
		}
	}
	return st
}

func startDashboard(t *testing.T, st store.Store, opts Options, extra ...DashboardOption) *Dashboard {
	t.Helper()
	options := append([]DashboardOption{WithClock(func() time.Time { return now })}, extra...)
	d := NewDashboard(st, newBuilder(), march, opts, options...)
	require.NoError(t, d.Start())
	t.Cleanup(d.Close)
	return d
}

func itemIDs(items []model.TimelineItem) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestDashboardInitialView(t *testing.T) {
	d := startDashboard(t, seedStore(t), Options{})
	v := d.View()

	require.Len(t, v.Days, 42)
	assert.Equal(t, march, v.Month)
	assert.Equal(t, "2025-02-23", v.Days[0].Key)

	day, ok := v.Day("2025-03-15")
	require.True(t, ok)
	assert.Equal(t, []string{"e1", "task_t1_2025-03-15"}, itemIDs(day.Items))
	assert.Equal(t, 1, day.PendingRequests)
	assert.True(t, day.InMonth)
	assert.False(t, day.Past)

	today, _ := v.Day("2025-03-10")
	assert.True(t, today.Today)
	assert.False(t, today.Past)
	yesterday, _ := v.Day("2025-03-09")
	assert.True(t, yesterday.Past)
	first, _ := v.Day("2025-02-23")
	assert.False(t, first.InMonth)

	invoice, _ := v.Day("2025-03-12")
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, "Acme Corp", invoice.Items[0].Task.AssigneeName)
	assert.Equal(t, 50, invoice.Items[0].Task.Progress)

	for _, it := range v.Items {
		if it.Task != nil {
			assert.NotEqual(t, "t3", it.Task.TaskID, "archived tasks never render")
		}
	}
	// Weekly template: the five Mondays of March.
	weekly := 0
	for _, it := range v.Items {
		if it.Task != nil && it.Task.TaskID == "t4" {
			weekly++
		}
	}
	assert.Equal(t, 5, weekly)

	assert.Equal(t, model.Stats{TotalEvents: 2, ApprovedMeetings: 1, UpcomingDeadlines: 2, PendingRequests: 1}, v.Stats)
	assert.Len(t, v.Upcoming, 5)

	snap := d.Snapshot()
	assert.Len(t, snap.Projects, 2, "soft-deleted projects are dropped")
	assert.Equal(t, "dev@example.com", snap.Users[0].Name)
}

func TestDashboardRecomputesOnEveryWrite(t *testing.T) {
	st := seedStore(t)
	d := startDashboard(t, st, Options{})

	var updates []MonthView
	d.OnUpdate(func(v MonthView) { updates = append(updates, v) })

	_, err := st.Create(context.Background(), model.CollectionTasks, model.Fields{"id": "t9", "title": "New", "dueDate": "2025-03-25"})
	require.NoError(t, err)
	require.Len(t, updates, 1)
	day, _ := updates[0].Day("2025-03-25")
	assert.Equal(t, []string{"task_t9_2025-03-25"}, itemIDs(day.Items))

	// A client rename reaches already-expanded occurrences.
	require.NoError(t, st.Update(context.Background(), model.CollectionClients, "c1", model.Fields{"clientName": "Jane"}))
	require.Len(t, updates, 2)
	day, _ = d.View().Day("2025-03-12")
	assert.Equal(t, "Jane", day.Items[0].Task.AssigneeName)
}

func TestDashboardDeliversLatestViewLast(t *testing.T) {
	st := seedStore(t)
	d := startDashboard(t, st, Options{})

	var mu sync.Mutex
	var last MonthView
	d.OnUpdate(func(v MonthView) {
		mu.Lock()
		last = v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for w := 0; w < 6; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				_, err := st.Create(context.Background(), model.CollectionEvents, model.Fields{"title": "Sync", "date": "2025-03-20"})
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				d.Refresh()
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2+30, d.View().Stats.TotalEvents)
	assert.Equal(t, d.View().Stats, last.Stats)
}

func TestDashboardFiltersLeaveStatsAlone(t *testing.T) {
	d := startDashboard(t, seedStore(t), Options{})
	before := d.View().Stats

	d.SetFilters(filter.Filters{Project: "P1"})
	v := d.View()
	assert.Equal(t, before, v.Stats)
	assert.Equal(t, []string{"task_t1_2025-03-15"}, itemIDs(v.Items))
	assert.Greater(t, len(v.Timeline.Items), len(v.Items))

	day, _ := v.Day("2025-03-15")
	assert.Equal(t, 1, day.PendingRequests, "request badges ignore filters")
}

func TestDashboardManagerScope(t *testing.T) {
	d := startDashboard(t, seedStore(t), Options{ManagerID: "m1"})
	for _, it := range d.View().Items {
		if it.Task != nil {
			assert.Equal(t, "P1", it.Task.ProjectID)
		}
	}
}

func TestDashboardSetMonth(t *testing.T) {
	d := startDashboard(t, seedStore(t), Options{})
	d.SetMonth(time.Date(2025, time.April, 20, 0, 0, 0, 0, kst))

	v := d.View()
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, kst), v.Month)
	var ids []string
	for _, it := range v.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{
		"task_t4_2025-04-07",
		"task_t4_2025-04-14",
		"task_t4_2025-04-21",
		"task_t4_2025-04-28",
	}, ids[len(ids)-4:])
}

func TestDashboardApproveRequest(t *testing.T) {
	st := seedStore(t)
	d := startDashboard(t, st, Options{})
	ctx := context.Background()

	id, err := d.ApproveRequest(ctx, "r1", "admin")
	require.NoError(t, err)

	v := d.View()
	assert.Equal(t, 0, v.Stats.PendingRequests)
	assert.Equal(t, 2, v.Stats.ApprovedMeetings)
	assert.Equal(t, 3, v.Stats.TotalEvents)

	day, _ := v.Day("2025-03-15")
	assert.Equal(t, 0, day.PendingRequests)
	assert.Equal(t, []string{"e1", id, "task_t1_2025-03-15"}, itemIDs(day.Items))
	assert.Equal(t, "Client Meeting - Scope", day.Items[1].Title)

	_, err = d.ApproveRequest(ctx, "r1", "admin")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = d.ApproveRequest(ctx, "r2", "admin")
	assert.Error(t, err, "only pending requests can be approved")
}

func TestDashboardRejectRequest(t *testing.T) {
	st := seedStore(t)
	d := startDashboard(t, st, Options{})

	require.NoError(t, d.RejectRequest(context.Background(), "r1", "admin", "fully booked"))

	var got model.MeetingRequest
	for _, r := range d.Snapshot().MeetingRequests {
		if r.ID == "r1" {
			got = r
		}
	}
	assert.Equal(t, model.RequestRejected, got.Status)
	assert.Equal(t, "fully booked", got.RejectionReason)
	assert.Equal(t, "admin", got.RejectedBy)
	assert.True(t, now.Equal(got.RejectedAt))
	assert.Equal(t, 0, d.View().Stats.PendingRequests)

	assert.ErrorIs(t, d.RejectRequest(context.Background(), "missing", "admin", ""), store.ErrNotFound)
}

func TestDashboardCloseStopsUpdates(t *testing.T) {
	st := seedStore(t)
	d := startDashboard(t, st, Options{})
	d.Close()

	_, err := st.Create(context.Background(), model.CollectionEvents, model.Fields{"date": "2025-03-01"})
	require.NoError(t, err)
	assert.Equal(t, 2, d.View().Stats.TotalEvents)
	d.Close()
}

func TestDashboardMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.MustNew(registry)
	d := startDashboard(t, seedStore(t), Options{}, WithMetrics(m))

	// One recompute per initial collection snapshot.
	assert.Equal(t, float64(len(store.Collections)), sumMetric(t, registry, "teamcal_dashboard_recomputes_total"))
	d.Refresh()
	assert.Equal(t, float64(len(store.Collections)+1), sumMetric(t, registry, "teamcal_dashboard_recomputes_total"))
	assert.Equal(t, float64(len(d.View().Timeline.Items)), sumMetric(t, registry, "teamcal_dashboard_timeline_items"))
}

func sumMetric(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return total
}

func TestDecodeAllCountsFailures(t *testing.T) {
	recs := []store.Record{{ID: "p1"}, {ID: ""}, {ID: "p2", Fields: model.Fields{"deleted": true}}}
	got, skipped := decodeAll(model.CollectionProjects, recs, func(r store.Record) (model.Project, bool, error) {
		return model.DecodeProject(r.ID, r.Fields)
	})
	assert.Equal(t, 1, skipped)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}

func TestComposeIsPure(t *testing.T) {
	d := startDashboard(t, seedStore(t), Options{})
	snap := d.Snapshot()
	b := newBuilder()

	a := Compose(b, snap, march, now, Options{Filters: filter.Filters{Type: "task"}})
	c := Compose(b, snap, march, now, Options{Filters: filter.Filters{Type: "task"}})
	assert.Equal(t, a, c)
	assert.Equal(t, d.Snapshot(), snap)
}
