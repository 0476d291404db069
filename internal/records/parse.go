package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRecord is returned when a row lacks a field the typed record requires.
var ErrMalformedRecord = errors.New("malformed record")

// Row is an untyped row as exported from the hosted store.
type Row map[string]any

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses the first present key as a timestamp. Values without an offset are read in loc.
func (r Row) Time(loc *time.Location, keys ...string) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, key := range keys {
		raw, ok := r[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case time.Time:
			if v.IsZero() {
				continue
			}
			return v, true
		case string:
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			for _, layout := range timeLayouts {
				if parsed, err := time.ParseInLocation(layout, v, loc); err == nil {
					return parsed, true
				}
			}
		}
	}
	return time.Time{}, false
}

// Number coerces a numeric or numeric-string value to float64. Anything else, including NaN and
// infinities, yields 0, false.
func (r Row) Number(key string) (float64, bool) {
	var f float64
	switch v := r[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String returns a trimmed string value, formatting numbers for numeric ids.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Bool reads a boolean flag, accepting "true"/"false" strings.
func (r Row) Bool(key string) (bool, bool) {
	switch v := r[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

func (r Row) optionalTime(loc *time.Location, keys ...string) *time.Time {
	if t, ok := r.Time(loc, keys...); ok {
		return &t
	}
	return nil
}

func (r Row) optionalNumber(key string) *float64 {
	if v, ok := r.Number(key); ok {
		return &v
	}
	return nil
}

func missing(table, field string) error {
	return fmt.Errorf("%w: %s.%s is required", ErrMalformedRecord, table, field)
}

// ParseWorkout converts a workout_logs row. A row without an explicit completed flag counts as completed.
func ParseWorkout(r Row, loc *time.Location) (WorkoutLog, error) {
	at, ok := r.Time(loc, "completed_at", "created_at", "date")
	if !ok {
		return WorkoutLog{}, missing("workout_logs", "completed_at")
	}
	completed, ok := r.Bool("completed")
	if !ok {
		completed = true
	}
	return WorkoutLog{
		ID:          r.String("id"),
		UserID:      r.String("user_id"),
		CompletedAt: at,
		Calories:    r.optionalNumber("calories"),
		Completed:   completed,
	}, nil
}

// ParseMeal converts a meal_logs row.
func ParseMeal(r Row, loc *time.Location) (MealLog, error) {
	at, ok := r.Time(loc, "logged_at", "created_at", "date")
	if !ok {
		return MealLog{}, missing("meal_logs", "logged_at")
	}
	return MealLog{
		ID:       r.String("id"),
		UserID:   r.String("user_id"),
		LoggedAt: at,
		Calories: r.optionalNumber("calories"),
	}, nil
}

// ParseAttendance converts an attendance row.
func ParseAttendance(r Row, loc *time.Location) (Attendance, error) {
	in, ok := r.Time(loc, "check_in_time", "check_in", "created_at")
	if !ok {
		return Attendance{}, missing("attendance", "check_in_time")
	}
	return Attendance{
		ID:       r.String("id"),
		UserID:   r.String("user_id"),
		CheckIn:  in,
		CheckOut: r.optionalTime(loc, "check_out_time", "check_out"),
	}, nil
}

// ParseMember converts a members row.
func ParseMember(r Row, loc *time.Location) (Member, error) {
	id := r.String("id")
	if id == "" {
		return Member{}, missing("members", "id")
	}
	return Member{
		ID:       id,
		GymID:    r.String("gym_id"),
		JoinedAt: r.optionalTime(loc, "joined_at", "created_at"),
	}, nil
}

// ParseSubscription converts a subscriptions row. Non-numeric amounts coerce to zero.
func ParseSubscription(r Row, loc *time.Location) (Subscription, error) {
	memberID := r.String("member_id")
	if memberID == "" {
		return Subscription{}, missing("subscriptions", "member_id")
	}
	amount, _ := r.Number("amount_paid")
	return Subscription{
		ID:          r.String("id"),
		MemberID:    memberID,
		Status:      SubscriptionStatus(strings.ToLower(r.String("status"))),
		AmountPaid:  amount,
		StartDate:   r.optionalTime(loc, "start_date"),
		EndDate:     r.optionalTime(loc, "end_date"),
		PaymentDate: r.optionalTime(loc, "payment_date"),
	}, nil
}

// ParseCashPayment converts a cash_payments row. Non-numeric amounts coerce to zero.
func ParseCashPayment(r Row, loc *time.Location) (CashPayment, error) {
	amount, _ := r.Number("amount")
	return CashPayment{
		ID:          r.String("id"),
		MemberID:    r.String("member_id"),
		Amount:      amount,
		PaymentDate: r.optionalTime(loc, "payment_date"),
	}, nil
}

// ParseRows applies parse to every row, keeping valid records and counting dropped ones.
func ParseRows[T any](rows []Row, loc *time.Location, parse func(Row, *time.Location) (T, error)) ([]T, int) {
	out := make([]T, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		rec, err := parse(row, loc)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	return out, dropped
}
