package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"example.com/gymcore/internal/records"
	"example.com/gymcore/internal/scoring"
)

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
	good  = color.New(color.FgGreen)
	warn  = color.New(color.FgYellow)
)

type profileOptions struct {
	user string
	now  string
}

type userProfile struct {
	UserID string
	scoring.Profile
}

func newProfileCmd(global *globalOptions) *cobra.Command {
	opts := &profileOptions{}

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Compute XP, level and streaks per member",
		Long: `Compute the activity profile for one member, or for every member found in
the workout, meal and attendance tables.

Streaks count calendar days in --tz. Use --now to score as of a fixed instant.

EXAMPLES:

  gymctl profile -f export.json
  gymctl profile -f export.json --user u1 --now 2025-10-27T01:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := global.location()
			if err != nil {
				return err
			}
			now, err := parseNow(opts.now)
			if err != nil {
				return err
			}
			exp, err := loadExport(global.file)
			if err != nil {
				return err
			}

			ds := exp.parse(loc)
			out := cmd.OutOrStdout()
			ds.reportDropped(cmd.ErrOrStderr(), tableWorkouts, tableMeals, tableAttendance)

			profiles := scoreUsers(ds, now.In(loc), opts.user)
			if len(profiles) == 0 {
				fmt.Fprintln(out, "No activity found.")
				return nil
			}
			printProfiles(out, profiles)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "score a single member")
	cmd.Flags().StringVar(&opts.now, "now", "", "score as of this RFC3339 instant (default current time)")
	return cmd
}

func parseNow(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: expected RFC3339", value)
	}
	return t, nil
}

// scoreUsers groups activity by member and scores each. Results are ordered by points, then user id.
func scoreUsers(ds dataset, now time.Time, only string) []userProfile {
	type activity struct {
		workouts   []records.WorkoutLog
		meals      []records.MealLog
		attendance []records.Attendance
	}
	byUser := map[string]*activity{}
	get := func(userID string) *activity {
		if only != "" && userID != only {
			return nil
		}
		a, ok := byUser[userID]
		if !ok {
			a = &activity{}
			byUser[userID] = a
		}
		return a
	}

	for _, w := range ds.workouts {
		if a := get(w.UserID); a != nil {
			a.workouts = append(a.workouts, w)
		}
	}
	for _, m := range ds.meals {
		if a := get(m.UserID); a != nil {
			a.meals = append(a.meals, m)
		}
	}
	for _, c := range ds.attendance {
		if a := get(c.UserID); a != nil {
			a.attendance = append(a.attendance, c)
		}
	}

	out := make([]userProfile, 0, len(byUser))
	for userID, a := range byUser {
		events := records.Events(a.workouts, a.meals, a.attendance)
		out = append(out, userProfile{UserID: userID, Profile: scoring.Score(events, now)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func printProfiles(w io.Writer, profiles []userProfile) {
	for _, p := range profiles {
		streak := faint.Sprintf("%d", p.CurrentStreak)
		if p.CurrentStreak > 0 {
			streak = good.Sprintf("%d", p.CurrentStreak)
		}
		fmt.Fprintf(w, "%s level %d  %d XP  streak %s (best %d)  %s\n",
			bold.Sprint(padRight(p.UserID, 16)),
			p.Level,
			p.TotalPoints,
			streak,
			p.MaxStreak,
			faint.Sprintf("workouts=%d meals=%d check-ins=%d", p.Workouts, p.Meals, p.CheckIns))
	}
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}
