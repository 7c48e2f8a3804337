package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"teamcal/internal/config"
	"teamcal/internal/datemath"
	"teamcal/internal/ics"
	appLog "teamcal/internal/log"
	"teamcal/internal/model"
	"teamcal/internal/render"
	"teamcal/internal/rollover"
	"teamcal/internal/view"
	"teamcal/internal/web"
)

func (a *app) renderOptions() render.Options {
	return render.Options{Highlight: a.cfg.HighlightRed, Now: time.Now().In(a.loc)}
}

// withView opens a dashboard for the selected month and hands its current
// view to fn.
func (a *app) withView(fn func(v view.MonthView) error) error {
	month, err := a.visibleMonth()
	if err != nil {
		return err
	}
	d, err := a.dashboard(month)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d.View())
}

func newMonthCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Show the month grid, stats and upcoming items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withView(func(v view.MonthView) error {
				return render.Month(cmd.OutOrStdout(), v, a.renderOptions())
			})
		},
	}
	a.addViewFlags(cmd)
	return cmd
}

func newDayCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day YYYY-MM-DD",
		Short: "Show one day's items and meeting requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := datemath.ParseDateKey(args[0], a.loc)
			if err != nil {
				return fmt.Errorf("day must be YYYY-MM-DD: %w", err)
			}
			if a.month == "" {
				a.month = day.Format("2006-01")
			}
			return a.withView(func(v view.MonthView) error {
				return render.Day(cmd.OutOrStdout(), v, args[0], a.renderOptions())
			})
		},
	}
	a.addViewFlags(cmd)
	return cmd
}

func newStatsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the header counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withView(func(v view.MonthView) error {
				return render.Stats(cmd.OutOrStdout(), v.Stats)
			})
		},
	}
	a.addViewFlags(cmd)
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Export the month's filtered items as iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withView(func(v view.MonthView) error {
				body := ics.Export(v.Items, a.loc, time.Now())
				if out == "" || out == "-" {
					_, err := io.WriteString(cmd.OutOrStdout(), body)
					return err
				}
				if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
					return err
				}
				appLog.Info("ics exported", "path", out, "items", len(v.Items))
				return nil
			})
		},
	}
	a.addViewFlags(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to file instead of stdout")
	return cmd
}

func newImportCommand(a *app) *cobra.Command {
	var from, to, createdBy string
	cmd := &cobra.Command{
		Use:   "import-ics FILE",
		Short: "Import VEVENTs as events; recurring events are expanded between --from and --to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := a.importWindow(from, to)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			name := "stdin"
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r, name = f, args[0]
			}

			res, err := ics.Import(r, ics.ImportOptions{
				Location:       a.loc,
				RangeStart:     start,
				RangeEnd:       end,
				MaxOccurrences: a.cfg.MaxOccurrencesPerTask,
				Source:         ics.Source{ID: name, Name: name},
				CreatedBy:      createdBy,
				OnTruncate:     a.metrics.Truncated,
			})
			if err != nil {
				return err
			}
			for _, f := range res.Records {
				if _, err := a.store.Create(cmd.Context(), model.CollectionEvents, f); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d events from %s\n", len(res.Records), name)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Window start YYYY-MM-DD (default first day of current month)")
	cmd.Flags().StringVar(&to, "to", "", "Window end YYYY-MM-DD, inclusive (default one year after --from)")
	cmd.Flags().StringVar(&createdBy, "created-by", "ics-import", "createdBy recorded on imported events")
	return cmd
}

func (a *app) importWindow(from, to string) (time.Time, time.Time, error) {
	start, _ := datemath.MonthRange(time.Now().In(a.loc))
	if from != "" {
		t, err := datemath.ParseDateKey(from, a.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
		}
		start = t
	}
	end := start.AddDate(1, 0, 0)
	if to != "" {
		t, err := datemath.ParseDateKey(to, a.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
		}
		end = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("--to is before --from")
	}
	return start, end, nil
}

// withDashboard opens a dashboard for the current month; request commands
// only need its snapshot and write helpers.
func (a *app) withDashboard(fn func(d *view.Dashboard) error) error {
	d, err := a.dashboard(time.Now().In(a.loc))
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

func newApproveCommand(a *app) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "approve REQUEST_ID",
		Short: "Approve a pending meeting request and schedule it as a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDashboard(func(d *view.Dashboard) error {
				id, err := d.ApproveRequest(cmd.Context(), args[0], by)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s approved as event %s\n", args[0], id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "admin", "Approver recorded as createdBy")
	return cmd
}

func newRejectCommand(a *app) *cobra.Command {
	var by, reason string
	cmd := &cobra.Command{
		Use:   "reject REQUEST_ID",
		Short: "Reject a meeting request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDashboard(func(d *view.Dashboard) error {
				if err := d.RejectRequest(cmd.Context(), args[0], by, reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s rejected\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "admin", "Recorded as rejectedBy")
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason shown to the client")
	return cmd
}

func (a *app) rolloverRunner() *rollover.Runner {
	return &rollover.Runner{Store: a.store, Location: a.loc, Metrics: a.metrics}
}

func newRolloverCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Create the next instance of every completed recurring task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := a.rolloverRunner().Run(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range results {
				switch {
				case r.Created():
					fmt.Fprintf(w, "%s -> %s due %s\n", r.TaskID, r.NewTaskID, r.DueDate)
				case r.Err != nil:
					fmt.Fprintf(w, "%s: %s: %v\n", r.TaskID, r.Reason, r.Err)
				default:
					fmt.Fprintf(w, "%s: %s (%s)\n", r.TaskID, r.Reason, r.DueDate)
				}
			}
			return nil
		},
	}
}

func newWatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the view live; refresh and roll over recurring tasks on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.watch(cmd.Context(), cmd.OutOrStdout())
		},
	}
	a.addViewFlags(cmd)
	return cmd
}

func (a *app) watch(parent context.Context, out io.Writer) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	month, err := a.visibleMonth()
	if err != nil {
		return err
	}
	d, err := a.dashboard(month)
	if err != nil {
		return err
	}
	defer d.Close()

	opts := a.renderOptions()
	d.OnUpdate(func(v view.MonthView) {
		opts.Now = time.Now().In(a.loc)
		if err := render.Month(out, v, opts); err != nil {
			appLog.Warn("watch: render failed", "reason", err.Error())
		}
	})
	if err := render.Month(out, d.View(), opts); err != nil {
		return err
	}

	sched, err := config.ParseSchedule(a.cfg.RefreshCron)
	if err != nil {
		return err
	}
	runner := a.rolloverRunner()
	c := cron.New(cron.WithLocation(a.loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := runner.Run(ctx); err != nil {
			appLog.Error("watch: rollover failed", err)
		}
		d.Refresh()
	}))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Start()
		appLog.Info("watch: scheduler started", "refresh", a.cfg.RefreshCron, "next", sched.Next(time.Now().In(a.loc)).Format(time.RFC3339))
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("watch: scheduler stopped")
		return nil
	})
	if a.cfg.Listen != "" {
		srv := web.NewServer(a.cfg, d, a.registry)
		g.Go(func() error {
			return srv.Serve(ctx)
		})
	}
	return g.Wait()
}
