package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"example.com/gymcore/internal/analytics"
)

type dashboardOptions struct {
	ref    string
	months int
}

func newDashboardCmd(global *globalOptions) *cobra.Command {
	opts := &dashboardOptions{}

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Render the admin dashboard series and KPIs",
		Long: `Render revenue, member growth and check-in trends plus the KPI snapshot.

The reference date defaults to today in --tz. Months and days are bucketed in --tz.

EXAMPLES:

  gymctl dashboard -f export.json
  gymctl dashboard -f export.json --ref 2025-10-31 --months 12 --tz America/New_York`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := global.location()
			if err != nil {
				return err
			}
			ref, err := parseRef(opts.ref, loc)
			if err != nil {
				return err
			}
			if opts.months < 0 {
				return fmt.Errorf("--months must be positive")
			}
			exp, err := loadExport(global.file)
			if err != nil {
				return err
			}

			ds := exp.parse(loc)
			ds.reportDropped(cmd.ErrOrStderr(), tableMembers, tableSubscriptions, tableCashPayments, tableAttendance, tableWorkouts)

			dash := analytics.BuildDashboard(analytics.Input{
				Members:       ds.members,
				Subscriptions: ds.subscriptions,
				CashPayments:  ds.cash,
				Attendance:    ds.attendance,
				Workouts:      ds.workouts,
			}, ref, opts.months)
			printDashboard(cmd.OutOrStdout(), dash)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ref, "ref", "", "reference date YYYY-MM-DD (default today)")
	cmd.Flags().IntVarP(&opts.months, "months", "m", analytics.DefaultMonths, "number of monthly buckets")
	return cmd
}

// parseRef returns the last instant of the given day in loc, or now when value is empty.
func parseRef(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Now().In(loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --ref %q: expected YYYY-MM-DD", value)
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func printDashboard(w io.Writer, d analytics.Dashboard) {
	fmt.Fprintf(w, "%s %s\n\n", bold.Sprint("Dashboard as of"), d.Reference.Format("2006-01-02 MST"))

	printSeries(w, "Revenue", d.Revenue, "%.2f")
	printSeries(w, "New members", d.MemberGrowth, "%.0f")
	printSeries(w, "Check-ins per month", d.MonthlyCheckIns, "%.0f")
	printSeries(w, "Check-ins per day", d.DailyCheckIns, "%.0f")

	if d.PeakHours.Found {
		fmt.Fprintf(w, "%s %s (%d check-ins)\n\n", bold.Sprint("Peak hours:"), good.Sprint(d.PeakHours.Label), d.PeakHours.Count)
	} else {
		fmt.Fprintf(w, "%s %s\n\n", bold.Sprint("Peak hours:"), faint.Sprint("no check-ins"))
	}

	fmt.Fprintln(w, bold.Sprint("Metrics"))
	keys := make([]string, 0, len(d.Metrics))
	for k := range d.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s %.2f\n", padRight(k, 24), d.Metrics[k])
	}
}

func printSeries(w io.Writer, title string, buckets []analytics.DateBucket, format string) {
	fmt.Fprintln(w, bold.Sprint(title))
	for _, b := range buckets {
		fmt.Fprintf(w, "  %s "+format+"\n", faint.Sprint(padRight(b.Label, 10)), b.Value)
	}
	fmt.Fprintln(w)
}
