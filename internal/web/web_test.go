package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamcal/internal/config"
	"teamcal/internal/metrics"
	"teamcal/internal/model"
	"teamcal/internal/recurrence"
	"teamcal/internal/timeline"
	"teamcal/internal/view"
)

var kst = time.FixedZone("KST", 9*60*60)

type staticView struct{ v view.MonthView }

func (s staticView) View() view.MonthView { return s.v }

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *prometheus.Registry) {
	t.Helper()
	snap := view.Snapshot{
		Events: []model.Event{
			{ID: "e1", Title: "Kickoff", Type: "meeting", Status: "approved", Date: "2025-03-15", Time: "10:00", Duration: 30},
		},
		MeetingRequests: []model.MeetingRequest{
			{ID: "r1", ClientName: "Acme", RequestedDate: "2025-03-15", Purpose: "Scope", Status: model.RequestPending},
		},
	}
	b := timeline.NewBuilder(recurrence.NewExpander(recurrence.Options{Location: kst}))
	now := time.Date(2025, time.March, 12, 9, 0, 0, 0, kst)
	v := view.Compose(b, snap, now, now, view.Options{})

	reg := prometheus.NewRegistry()
	metrics.MustNew(reg).TimelineSize(len(v.Items))

	cfg.Timezone = "UTC"
	s := NewServer(cfg, staticView{v}, reg)
	s.loc = kst
	s.now = func() time.Time { return now }
	return s, reg
}

func get(t *testing.T, h http.Handler, path string, auth ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, config.DefaultConfig())
	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestView(t *testing.T) {
	s, _ := newTestServer(t, config.DefaultConfig())

	rec := get(t, s.Handler(), "/api/view")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-03", resp.Month)
	assert.Len(t, resp.Days, 42)
	assert.Equal(t, 1, resp.Stats.PendingRequests)

	rec = get(t, s.Handler(), "/api/view?date=2025-03-15")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = viewResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Days, 1)
	day := resp.Days[0]
	assert.True(t, day.InMonth)
	assert.Equal(t, 1, day.PendingRequests)
	require.Len(t, day.Items, 1)
	assert.Equal(t, itemDTO{Kind: "event", ID: "e1", Title: "Kickoff", Date: "2025-03-15", Time: "10:00",
		Type: "meeting", Status: "approved", Priority: "medium", Duration: 30}, day.Items[0])

	assert.Equal(t, http.StatusBadRequest, get(t, s.Handler(), "/api/view?date=March").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/api/view?date=2025-06-01").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/view", nil)
	post := httptest.NewRecorder()
	s.Handler().ServeHTTP(post, req)
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}

func TestCalendarICS(t *testing.T) {
	s, _ := newTestServer(t, config.DefaultConfig())
	rec := get(t, s.Handler(), "/calendar.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, rec.Body.String(), "UID:e1@teamcal")
	assert.Contains(t, rec.Body.String(), "DTSTART:20250315T010000Z")
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, config.DefaultConfig())
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "teamcal_dashboard_timeline_items 1")

	noMetrics := NewServer(config.DefaultConfig(), s.views, nil)
	assert.Equal(t, http.StatusNotFound, get(t, noMetrics.Handler(), "/metrics").Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "ops", Password: "s3cret"}
	s, _ := newTestServer(t, cfg)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code, "health stays open")
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/view").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/view", "ops", "wrong").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/view", "ops", "s3cret").Code)

	cfg.BasicAuth.Password = ""
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/api/view").Code, "incomplete credentials disable auth")
}
