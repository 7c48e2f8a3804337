// Package web serves a read-only status surface for the running dashboard:
// health, Prometheus metrics, the current month as JSON and as iCalendar.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"teamcal/internal/config"
	"teamcal/internal/datemath"
	"teamcal/internal/filter"
	"teamcal/internal/ics"
	appLog "teamcal/internal/log"
	"teamcal/internal/model"
	"teamcal/internal/view"
)

// ViewSource is satisfied by *view.Dashboard.
type ViewSource interface {
	View() view.MonthView
}

// Server provides the HTTP endpoints.
type Server struct {
	cfg      *config.Config
	loc      *time.Location
	views    ViewSource
	gatherer prometheus.Gatherer
	now      func() time.Time
	mux      *http.ServeMux
}

// NewServer constructs a new Server. A nil gatherer hides /metrics.
func NewServer(cfg *config.Config, views ViewSource, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:      cfg,
		loc:      cfg.Location(),
		views:    views,
		gatherer: gatherer,
		now:      time.Now,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="teamcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/view", s.handleView)
	s.mux.HandleFunc("/calendar.ics", s.handleICS)
	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleICS exports the filtered items of the current month.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	v := s.views.View()
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.Export(v.Items, s.loc, s.now())))
}

// handleView returns the current month view.
//
// GET /api/view?date=2025-03-15
//   - date: optional; restricts days to that single date
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	v := s.views.View()

	resp := viewResponse{
		Month:    v.Month.Format("2006-01"),
		Stats:    v.Stats,
		Filters:  v.Filters,
		Upcoming: itemDTOs(v.Upcoming),
		Days:     make([]dayDTO, 0, len(v.Days)),
	}

	only := r.URL.Query().Get("date")
	if only != "" {
		if _, err := datemath.ParseDateKey(only, s.loc); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}
	for _, d := range v.Days {
		if only != "" && d.Key != only {
			continue
		}
		resp.Days = append(resp.Days, dayDTO{
			Date:            d.Key,
			InMonth:         d.InMonth,
			Today:           d.Today,
			Items:           itemDTOs(d.Items),
			PendingRequests: d.PendingRequests,
		})
	}
	if only != "" && len(resp.Days) == 0 {
		writeError(w, http.StatusNotFound, "date is not in the current month grid")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type viewResponse struct {
	Month    string         `json:"month"`
	Stats    model.Stats    `json:"stats"`
	Filters  filter.Filters `json:"filters"`
	Upcoming []itemDTO      `json:"upcoming"`
	Days     []dayDTO       `json:"days"`
}

type dayDTO struct {
	Date            string    `json:"date"`
	InMonth         bool      `json:"in_month"`
	Today           bool      `json:"today"`
	Items           []itemDTO `json:"items"`
	PendingRequests int       `json:"pending_requests"`
}

// itemDTO is a JSON-friendly view of a timeline item.
type itemDTO struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time,omitempty"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Duration int    `json:"duration,omitempty"`
}

func itemDTOs(items []model.TimelineItem) []itemDTO {
	out := make([]itemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, itemDTO{
			Kind:     string(it.Kind),
			ID:       it.ID,
			Title:    it.Title,
			Date:     it.Date,
			Time:     it.Time,
			Type:     it.Type(),
			Status:   it.Status,
			Priority: it.Priority,
			Duration: it.Duration(),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
