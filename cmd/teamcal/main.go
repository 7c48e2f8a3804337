package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"teamcal/internal/config"
	"teamcal/internal/filter"
	appLog "teamcal/internal/log"
	"teamcal/internal/metrics"
	"teamcal/internal/recurrence"
	"teamcal/internal/store"
	"teamcal/internal/timeline"
	"teamcal/internal/view"
)

const defaultConfigPath = "./teamcal.yaml"

// app holds flag values and the resources opened by setup.
type app struct {
	configPath string
	month      string
	filters    filter.Filters

	cfg      *config.Config
	loc      *time.Location
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    store.Store
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		appLog.Error("teamcal failed", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "teamcal",
		Short:         "Team calendar: events, task deadlines and meeting requests in one month view",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "Path to config file")

	root.AddCommand(
		newMonthCommand(a),
		newDayCommand(a),
		newStatsCommand(a),
		newExportCommand(a),
		newImportCommand(a),
		newApproveCommand(a),
		newRejectCommand(a),
		newRolloverCommand(a),
		newWatchCommand(a),
	)
	return root
}

// addViewFlags registers the month selector and the four facet filters.
func (a *app) addViewFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&a.month, "month", "", "Month to show as YYYY-MM (default current month)")
	f.StringVar(&a.filters.Type, "type", filter.All, "Filter by item type (meeting, task, deadline, reminder)")
	f.StringVar(&a.filters.Status, "status", filter.All, "Filter by status")
	f.StringVar(&a.filters.Project, "project", filter.All, "Filter task occurrences by project id")
	f.StringVar(&a.filters.Employee, "employee", filter.All, "Filter by assignee or attendee id")
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", a.configPath, err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", a.configPath, err)
	}
	level, _ := appLog.ParseLevel(cfg.LogLevel)
	appLog.SetLevel(level)

	a.cfg = cfg
	a.loc = cfg.Location()
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.MustNew(a.registry)

	switch cfg.Store.Driver {
	case config.DriverSQLite:
		st, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		a.store = st
	default:
		a.store = store.NewMemory()
	}

	if cfg.Store.Seed != "" {
		n, err := store.LoadSeed(ctx, a.store, cfg.Store.Seed)
		if err != nil {
			a.close()
			return err
		}
		appLog.Info("store seeded", "path", cfg.Store.Seed, "records", n)
	}

	appLog.Debug("effective config",
		"timezone", a.loc.String(),
		"store", cfg.Store.Driver,
		"refresh", cfg.RefreshCron,
		"upcoming_days", cfg.UpcomingDays,
		"manager_id", cfg.ManagerID,
	)
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		appLog.Warn("store close failed", "reason", err.Error())
	}
	a.store = nil
}

// visibleMonth resolves --month in the calendar zone.
func (a *app) visibleMonth() (time.Time, error) {
	if a.month == "" {
		return time.Now().In(a.loc), nil
	}
	m, err := time.ParseInLocation("2006-01", a.month, a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--month must be YYYY-MM: %w", err)
	}
	return m, nil
}

func (a *app) builder() *timeline.Builder {
	return timeline.NewBuilder(recurrence.NewExpander(recurrence.Options{
		Location:              a.loc,
		MaxOccurrencesPerTask: a.cfg.MaxOccurrencesPerTask,
		CacheSize:             a.cfg.ExpansionCacheSize,
		OnTruncate:            a.metrics.Truncated,
	}))
}

func (a *app) viewOptions() view.Options {
	return view.Options{
		Filters:       a.filters,
		UpcomingLimit: a.cfg.UpcomingLimit,
		StatsWindow:   a.cfg.UpcomingWindow(),
		ManagerID:     a.cfg.ManagerID,
	}
}

// dashboard subscribes a dashboard to the store for month. The caller
// must Close it.
func (a *app) dashboard(month time.Time) (*view.Dashboard, error) {
	d := view.NewDashboard(a.store, a.builder(), month, a.viewOptions(), view.WithMetrics(a.metrics))
	if err := d.Start(); err != nil {
		return nil, err
	}
	return d, nil
}
