// Package records defines the typed rows the scoring and analytics code consumes.
package records

import "time"

// EventKind identifies which source table an ActivityEvent came from.
type EventKind string

const (
	KindWorkout EventKind = "workout"
	KindMeal    EventKind = "meal"
	KindCheckIn EventKind = "checkin"
)

// ActivityEvent is the common shape workouts, meals and check-ins are normalised to before scoring.
type ActivityEvent struct {
	Kind      EventKind
	Timestamp time.Time
	Magnitude *float64
}

// WorkoutLog is a completed (or abandoned) workout session.
type WorkoutLog struct {
	ID          string
	UserID      string
	CompletedAt time.Time
	Calories    *float64
	Completed   bool
}

// MealLog is a single logged meal.
type MealLog struct {
	ID       string
	UserID   string
	LoggedAt time.Time
	Calories *float64
}

// Attendance is a gym check-in with an optional check-out.
type Attendance struct {
	ID       string
	UserID   string
	CheckIn  time.Time
	CheckOut *time.Time
}

// SessionLength returns the visit duration when a valid check-out exists.
func (a Attendance) SessionLength() (time.Duration, bool) {
	if a.CheckOut == nil || !a.CheckOut.After(a.CheckIn) {
		return 0, false
	}
	return a.CheckOut.Sub(a.CheckIn), true
}

// Member is a gym member.
type Member struct {
	ID       string
	GymID    string
	JoinedAt *time.Time
}

// SubscriptionStatus mirrors the status column of the subscriptions table.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a paid membership period.
type Subscription struct {
	ID          string
	MemberID    string
	Status      SubscriptionStatus
	AmountPaid  float64
	StartDate   *time.Time
	EndDate     *time.Time
	PaymentDate *time.Time
}

// ActiveAt reports whether the subscription grants access at t.
func (s Subscription) ActiveAt(t time.Time) bool {
	if s.Status != SubscriptionActive {
		return false
	}
	if s.StartDate != nil && s.StartDate.After(t) {
		return false
	}
	return s.EndDate == nil || !s.EndDate.Before(t)
}

// RevenueDate is the date revenue is attributed to: payment date, else start date.
func (s Subscription) RevenueDate() (time.Time, bool) {
	if s.PaymentDate != nil {
		return *s.PaymentDate, true
	}
	if s.StartDate != nil {
		return *s.StartDate, true
	}
	return time.Time{}, false
}

// CashPayment is a payment taken at the front desk.
type CashPayment struct {
	ID          string
	MemberID    string
	Amount      float64
	PaymentDate *time.Time
}

// RevenueSource tags where a RevenueRecord came from.
type RevenueSource string

const (
	RevenueSubscription RevenueSource = "subscription"
	RevenueCash         RevenueSource = "cash"
)

// RevenueRecord is a dated amount from either revenue table.
type RevenueRecord struct {
	Amount float64
	Date   time.Time
	Source RevenueSource
}

// Events pools the three activity tables into ActivityEvents. Abandoned workouts are not events.
func Events(workouts []WorkoutLog, meals []MealLog, attendance []Attendance) []ActivityEvent {
	out := make([]ActivityEvent, 0, len(workouts)+len(meals)+len(attendance))
	for _, w := range workouts {
		if !w.Completed {
			continue
		}
		out = append(out, ActivityEvent{Kind: KindWorkout, Timestamp: w.CompletedAt, Magnitude: w.Calories})
	}
	for _, m := range meals {
		out = append(out, ActivityEvent{Kind: KindMeal, Timestamp: m.LoggedAt, Magnitude: m.Calories})
	}
	for _, a := range attendance {
		var minutes *float64
		if d, ok := a.SessionLength(); ok {
			v := d.Minutes()
			minutes = &v
		}
		out = append(out, ActivityEvent{Kind: KindCheckIn, Timestamp: a.CheckIn, Magnitude: minutes})
	}
	return out
}
