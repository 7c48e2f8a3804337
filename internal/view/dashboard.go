package view

import (
	"context"
	"fmt"
	"sync"
	"time"

	"teamcal/internal/filter"
	appLog "teamcal/internal/log"
	"teamcal/internal/metrics"
	"teamcal/internal/model"
	"teamcal/internal/store"
	"teamcal/internal/timeline"
)

// subscriptionOrder is the orderBy used per collection.
var subscriptionOrder = map[string]string{
	model.CollectionEvents:          "date",
	model.CollectionTasks:           "dueDate",
	model.CollectionMeetingRequests: "-requestedAt",
	model.CollectionClients:         "",
	model.CollectionUsers:           "",
	model.CollectionProjects:        "",
}

// Dashboard keeps a MonthView current. Every store notification replaces one
// collection of the snapshot and recomputes the whole view; there is no
// incremental update.
type Dashboard struct {
	st      store.Store
	builder *timeline.Builder
	metrics *metrics.Metrics
	now     func() time.Time

	// deliverMu orders compose-and-deliver, so OnUpdate sees views in the
	// order they were computed.
	deliverMu sync.Mutex

	mu       sync.RWMutex
	snap     Snapshot
	month    time.Time
	opts     Options
	view     MonthView
	onUpdate func(MonthView)
	unsubs   []func()
}

type DashboardOption func(*Dashboard)

func WithMetrics(m *metrics.Metrics) DashboardOption {
	return func(d *Dashboard) { d.metrics = m }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) DashboardOption {
	return func(d *Dashboard) { d.now = now }
}

func NewDashboard(st store.Store, b *timeline.Builder, month time.Time, opts Options, options ...DashboardOption) *Dashboard {
	d := &Dashboard{
		st:      st,
		builder: b,
		now:     time.Now,
		month:   month,
		opts:    opts,
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Start subscribes to every collection. Each subscription delivers its
// current snapshot immediately, so the view is complete when Start returns.
func (d *Dashboard) Start() error {
	for _, c := range store.Collections {
		collection := c
		unsub, err := d.st.Subscribe(collection, subscriptionOrder[collection], func(recs []store.Record) {
			d.apply(collection, recs)
		})
		if err != nil {
			d.Close()
			return fmt.Errorf("subscribe %s: %w", collection, err)
		}
		d.mu.Lock()
		d.unsubs = append(d.unsubs, unsub)
		d.mu.Unlock()
	}
	appLog.Info("dashboard: subscribed", "collections", len(store.Collections))
	return nil
}

// Close disposes every subscription. It is safe to call more than once.
func (d *Dashboard) Close() {
	d.mu.Lock()
	unsubs := d.unsubs
	d.unsubs = nil
	d.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (d *Dashboard) View() MonthView {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// OnUpdate registers fn to receive every recomputed view.
func (d *Dashboard) OnUpdate(fn func(MonthView)) {
	d.mu.Lock()
	d.onUpdate = fn
	d.mu.Unlock()
}

func (d *Dashboard) SetMonth(month time.Time) {
	d.mu.Lock()
	d.month = month
	d.mu.Unlock()
	d.recompute("month")
}

func (d *Dashboard) SetFilters(f filter.Filters) {
	d.mu.Lock()
	d.opts.Filters = f
	d.mu.Unlock()
	d.recompute("filters")
}

// Refresh recomputes against the current clock, so "today", "past" and the
// deadline window move on without a store write.
func (d *Dashboard) Refresh() {
	d.recompute("clock")
}

func (d *Dashboard) apply(collection string, recs []store.Record) {
	loc := d.builder.Expander.Location()
	skipped := 0

	d.mu.Lock()
	switch collection {
	case model.CollectionEvents:
		d.snap.Events, skipped = decodeAll(collection, recs, func(r store.Record) (model.Event, bool, error) {
			e, err := model.DecodeEvent(r.ID, r.Fields, loc)
			return e, true, err
		})
	case model.CollectionTasks:
		d.snap.Tasks, skipped = decodeAll(collection, recs, func(r store.Record) (model.Task, bool, error) {
			t, err := model.DecodeTask(r.ID, r.Fields, loc)
			return t, true, err
		})
	case model.CollectionMeetingRequests:
		d.snap.MeetingRequests, skipped = decodeAll(collection, recs, func(r store.Record) (model.MeetingRequest, bool, error) {
			m, err := model.DecodeMeetingRequest(r.ID, r.Fields, loc)
			return m, true, err
		})
	case model.CollectionClients:
		d.snap.Clients, skipped = decodeAll(collection, recs, func(r store.Record) (model.Client, bool, error) {
			c, err := model.DecodeClient(r.ID, r.Fields)
			return c, true, err
		})
	case model.CollectionUsers:
		d.snap.Users, skipped = decodeAll(collection, recs, func(r store.Record) (model.Resource, bool, error) {
			u, err := model.DecodeResource(r.ID, r.Fields)
			return u, true, err
		})
	case model.CollectionProjects:
		d.snap.Projects, skipped = decodeAll(collection, recs, func(r store.Record) (model.Project, bool, error) {
			return model.DecodeProject(r.ID, r.Fields)
		})
	}
	d.mu.Unlock()

	d.metrics.Skipped(collection, skipped)
	d.recompute(collection)
}

func (d *Dashboard) recompute(trigger string) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	v := Compose(d.builder, d.snap, d.month, d.now(), d.opts)
	d.view = v
	fn := d.onUpdate
	d.mu.Unlock()

	d.metrics.Recomputed(trigger)
	d.metrics.TimelineSize(len(v.Timeline.Items))
	if v.Timeline.SkippedTasks > 0 {
		appLog.Debug("dashboard: tasks without due date", "count", v.Timeline.SkippedTasks)
	}
	if fn != nil {
		fn(v)
	}
}

// decodeAll keeps the records decode accepts. Records that fail are logged
// and counted; records decode drops on purpose (ok=false) are not.
func decodeAll[T any](collection string, recs []store.Record, decode func(store.Record) (T, bool, error)) ([]T, int) {
	out := make([]T, 0, len(recs))
	skipped := 0
	for _, r := range recs {
		v, ok, err := decode(r)
		if err != nil {
			skipped++
			appLog.Warn("dashboard: skipping record", "collection", collection, "id", r.ID, "reason", err.Error())
			continue
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, skipped
}

// ApproveRequest turns a pending meeting request into an approved meeting
// event and removes the request. It returns the new event id.
func (d *Dashboard) ApproveRequest(ctx context.Context, requestID, approvedBy string) (string, error) {
	req, err := d.request(requestID)
	if err != nil {
		return "", err
	}
	if req.Status != model.RequestPending {
		return "", fmt.Errorf("approve %s: request is %s", requestID, req.Status)
	}

	ev := model.EventFromRequest(req, approvedBy)
	ev.CreatedAt = d.now()

	snap := d.Snapshot()
	if clashes := timeline.Conflicts(ev, snap.Events, d.builder.Expander.Location()); len(clashes) > 0 {
		ids := make([]string, 0, len(clashes))
		for _, c := range clashes {
			ids = append(ids, c.ID)
		}
		appLog.Warn("dashboard: approved meeting overlaps existing events", "request_id", requestID, "events", ids)
	}

	id, err := d.st.Create(ctx, model.CollectionEvents, model.EncodeEvent(ev))
	if err != nil {
		return "", fmt.Errorf("approve %s: %w", requestID, err)
	}
	if err := d.st.Delete(ctx, model.CollectionMeetingRequests, requestID); err != nil {
		return id, fmt.Errorf("approve %s: event %s created but request not removed: %w", requestID, id, err)
	}
	appLog.Info("dashboard: meeting request approved", "request_id", requestID, "event_id", id)
	return id, nil
}

// RejectRequest marks a meeting request rejected, keeping it for the client.
func (d *Dashboard) RejectRequest(ctx context.Context, requestID, rejectedBy, reason string) error {
	if _, err := d.request(requestID); err != nil {
		return err
	}
	err := d.st.Update(ctx, model.CollectionMeetingRequests, requestID, model.Fields{
		"status":          string(model.RequestRejected),
		"rejectionReason": reason,
		"rejectedBy":      rejectedBy,
		"rejectedAt":      d.now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("reject %s: %w", requestID, err)
	}
	appLog.Info("dashboard: meeting request rejected", "request_id", requestID)
	return nil
}

func (d *Dashboard) request(id string) (model.MeetingRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.snap.MeetingRequests {
		if r.ID == id {
			return r, nil
		}
	}
	return model.MeetingRequest{}, fmt.Errorf("meeting request %s: %w", id, store.ErrNotFound)
}
