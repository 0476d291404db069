package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	file     string
	timezone string
}

func (o *globalOptions) location() (*time.Location, error) {
	if o.timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", o.timezone, err)
	}
	return loc, nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "gymctl",
		Short: "Offline scoring and dashboard reports over a gym data export",
		Long: `gymctl computes member activity profiles and the admin dashboard from a
JSON export of the hosted tables, without touching the live database.

INPUT FORMAT:

  A JSON object mapping table name to an array of raw rows:

  {
    "workout_logs":  [{"user_id": "u1", "completed_at": "2025-10-01T07:00:00Z"}],
    "meal_logs":     [...],
    "attendance":    [...],
    "members":       [...],
    "subscriptions": [...],
    "cash_payments": [...]
  }

  Rows missing a required field are skipped and reported.

EXAMPLES:

  gymctl profile --file export.json --user u1 --tz Europe/Istanbul
  gymctl dashboard --file export.json --ref 2025-10-31 --months 12`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "path to the JSON export")
	root.PersistentFlags().StringVar(&opts.timezone, "tz", "", "IANA timezone for day and month boundaries (default UTC)")
	_ = root.MarkPersistentFlagRequired("file")

	root.AddCommand(newProfileCmd(opts))
	root.AddCommand(newDashboardCmd(opts))
	return root
}
