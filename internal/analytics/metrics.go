package analytics

import (
	"fmt"
	"math"
	"time"

	"example.com/gymcore/internal/records"
)

// RevenueRecords merges both payment tables into dated revenue rows. Undated rows are dropped and
// non-finite amounts count as zero.
func RevenueRecords(subs []records.Subscription, cash []records.CashPayment) []records.RevenueRecord {
	out := make([]records.RevenueRecord, 0, len(subs)+len(cash))
	for _, s := range subs {
		if at, ok := s.RevenueDate(); ok {
			out = append(out, records.RevenueRecord{Amount: finite(s.AmountPaid), Date: at, Source: records.RevenueSubscription})
		}
	}
	for _, c := range cash {
		if c.PaymentDate != nil {
			out = append(out, records.RevenueRecord{Amount: finite(c.Amount), Date: *c.PaymentDate, Source: records.RevenueCash})
		}
	}
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ComputeRevenue sums subscription and cash revenue dated within month/year in loc.
func ComputeRevenue(subs []records.Subscription, cash []records.CashPayment, month time.Month, year int, loc *time.Location) float64 {
	if loc == nil {
		loc = time.UTC
	}
	total := 0.0
	for _, r := range RevenueRecords(subs, cash) {
		at := r.Date.In(loc)
		if at.Month() == month && at.Year() == year {
			total += r.Amount
		}
	}
	return total
}

// GrowthRate is the percentage change from previous to current.
// With no previous baseline any current activity counts as +100%.
func GrowthRate(current, previous float64) float64 {
	if previous > 0 {
		return (current - previous) / previous * 100
	}
	if current > 0 {
		return 100
	}
	return 0
}

// Rate is numerator/denominator as a percentage, 0 when the denominator is 0.
func Rate(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator * 100
}

// PeakWindow is the busiest two-hour check-in window.
type PeakWindow struct {
	Hour  int
	Count int
	Label string
	Found bool
}

// PeakHours finds the hour of day (in loc) with the most check-ins. The earliest hour wins ties.
func PeakHours(checkins []time.Time, loc *time.Location) PeakWindow {
	if loc == nil {
		loc = time.UTC
	}
	var counts [24]int
	for _, c := range checkins {
		if c.IsZero() {
			continue
		}
		counts[c.In(loc).Hour()]++
	}

	best := PeakWindow{}
	for hour, n := range counts {
		if n > best.Count {
			best = PeakWindow{Hour: hour, Count: n, Found: true}
		}
	}
	if best.Found {
		best.Label = fmt.Sprintf("%s - %s", clockLabel(best.Hour), clockLabel((best.Hour+2)%24))
	}
	return best
}

func clockLabel(hour int) string {
	return time.Date(2000, time.January, 1, hour, 0, 0, 0, time.UTC).Format("3:04 PM")
}

// RetentionRate is the share of members holding an active subscription at ref.
func RetentionRate(members []records.Member, subs []records.Subscription, ref time.Time) float64 {
	return Rate(float64(activeMemberCount(members, subs, ref)), float64(len(members)))
}

// ChurnRate is the share of members whose subscription lapsed between the start of ref's month and ref
// and who hold no other active subscription at ref. Subscriptions of unknown members are ignored.
func ChurnRate(members []records.Member, subs []records.Subscription, ref time.Time) float64 {
	monthStart := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	active := activeMembers(subs, ref)
	known := make(map[string]struct{}, len(members))
	for _, m := range members {
		known[m.ID] = struct{}{}
	}

	lapsed := make(map[string]struct{})
	for _, s := range subs {
		if s.EndDate == nil {
			continue
		}
		end := *s.EndDate
		if end.Before(monthStart) || !end.Before(ref) {
			continue
		}
		if _, ok := known[s.MemberID]; !ok {
			continue
		}
		if _, stillActive := active[s.MemberID]; stillActive {
			continue
		}
		lapsed[s.MemberID] = struct{}{}
	}
	return Rate(float64(len(lapsed)), float64(len(members)))
}

// CompletionRate is the share of logged workouts marked completed.
func CompletionRate(workouts []records.WorkoutLog) float64 {
	completed := 0
	for _, w := range workouts {
		if w.Completed {
			completed++
		}
	}
	return Rate(float64(completed), float64(len(workouts)))
}

// AverageSessionMinutes is the mean visit length over check-ins that have a valid check-out.
func AverageSessionMinutes(attendance []records.Attendance) float64 {
	total := 0.0
	n := 0
	for _, a := range attendance {
		if d, ok := a.SessionLength(); ok {
			total += d.Minutes()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func activeMembers(subs []records.Subscription, ref time.Time) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range subs {
		if s.ActiveAt(ref) {
			out[s.MemberID] = struct{}{}
		}
	}
	return out
}

func activeMemberCount(members []records.Member, subs []records.Subscription, ref time.Time) int {
	active := activeMembers(subs, ref)
	n := 0
	for _, m := range members {
		if _, ok := active[m.ID]; ok {
			n++
		}
	}
	return n
}
