package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"example.com/gymcore/internal/records"
)

// Table names as they appear in an export.
const (
	tableWorkouts      = "workout_logs"
	tableMeals         = "meal_logs"
	tableAttendance    = "attendance"
	tableMembers       = "members"
	tableSubscriptions = "subscriptions"
	tableCashPayments  = "cash_payments"
)

type export map[string][]records.Row

func loadExport(path string) (export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return decodeExport(f)
}

func decodeExport(r io.Reader) (export, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out export
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return out, nil
}

// dataset is the typed content of an export plus per-table drop counts.
type dataset struct {
	workouts      []records.WorkoutLog
	meals         []records.MealLog
	attendance    []records.Attendance
	members       []records.Member
	subscriptions []records.Subscription
	cash          []records.CashPayment
	dropped       map[string]int
}

func (e export) parse(loc *time.Location) dataset {
	ds := dataset{dropped: map[string]int{}}
	var n int
	ds.workouts, n = records.ParseRows(e[tableWorkouts], loc, records.ParseWorkout)
	ds.dropped[tableWorkouts] = n
	ds.meals, n = records.ParseRows(e[tableMeals], loc, records.ParseMeal)
	ds.dropped[tableMeals] = n
	ds.attendance, n = records.ParseRows(e[tableAttendance], loc, records.ParseAttendance)
	ds.dropped[tableAttendance] = n
	ds.members, n = records.ParseRows(e[tableMembers], loc, records.ParseMember)
	ds.dropped[tableMembers] = n
	ds.subscriptions, n = records.ParseRows(e[tableSubscriptions], loc, records.ParseSubscription)
	ds.dropped[tableSubscriptions] = n
	ds.cash, n = records.ParseRows(e[tableCashPayments], loc, records.ParseCashPayment)
	ds.dropped[tableCashPayments] = n
	return ds
}

func (ds dataset) reportDropped(w io.Writer, tables ...string) {
	for _, table := range tables {
		if n := ds.dropped[table]; n > 0 {
			fmt.Fprintln(w, warn.Sprintf("skipped %d malformed %s row(s)", n, table))
		}
	}
}
