package analytics

import (
	"time"

	"example.com/gymcore/internal/records"
)

// DefaultMonths and DailyCheckInDays size the trend series.
const (
	DefaultMonths    = 6
	DailyCheckInDays = 7
)

// Metric names used in a MetricSnapshot.
const (
	MetricTotalMembers      = "totalMembers"
	MetricActiveMembers     = "activeMembers"
	MetricNewMembers        = "newMembers"
	MetricMemberGrowthRate  = "memberGrowthRate"
	MetricMonthlyRevenue    = "monthlyRevenue"
	MetricRevenueGrowthRate = "revenueGrowthRate"
	MetricTotalRevenue      = "totalRevenue"
	MetricRetentionRate     = "retentionRate"
	MetricChurnRate         = "churnRate"
	MetricCompletionRate    = "workoutCompletionRate"
	MetricAvgSessionMinutes = "avgSessionDuration"
	MetricMonthlyCheckIns   = "monthlyCheckIns"
	MetricCheckInGrowthRate = "checkInGrowthRate"
	MetricTodayCheckIns     = "todayCheckIns"
)

// MetricSnapshot maps KPI names to values for one render.
type MetricSnapshot map[string]float64

// Input is everything the dashboard needs, already fetched and typed.
type Input struct {
	Members       []records.Member
	Subscriptions []records.Subscription
	CashPayments  []records.CashPayment
	Attendance    []records.Attendance
	Workouts      []records.WorkoutLog
}

// Dashboard is the computed admin view.
type Dashboard struct {
	Reference       time.Time
	Revenue         []DateBucket
	MemberGrowth    []DateBucket
	MonthlyCheckIns []DateBucket
	DailyCheckIns   []DateBucket
	PeakHours       PeakWindow
	Metrics         MetricSnapshot
}

// BuildDashboard computes every series and KPI relative to ref. Month and day boundaries use ref's location.
func BuildDashboard(in Input, ref time.Time, months int) Dashboard {
	if months <= 0 {
		months = DefaultMonths
	}
	loc := ref.Location()

	revenueRows := RevenueRecords(in.Subscriptions, in.CashPayments)
	revenue := BucketByMonth(revenueRows, revenueDate, ref, months, Sum(revenueAmount))
	growth := BucketByMonth(in.Members, joinedDate, ref, months, Count[records.Member]())
	monthlyCheckIns := BucketByMonth(in.Attendance, checkInDate, ref, months, Count[records.Attendance]())
	dailyCheckIns := BucketByDay(in.Attendance, checkInDate, ref, DailyCheckInDays, Count[records.Attendance]())

	checkinTimes := make([]time.Time, 0, len(in.Attendance))
	for _, a := range in.Attendance {
		checkinTimes = append(checkinTimes, a.CheckIn)
	}

	prevRef := ref.AddDate(0, -1, 0)
	thisRevenue := ComputeRevenue(in.Subscriptions, in.CashPayments, ref.Month(), ref.Year(), loc)
	lastRevenue := ComputeRevenue(in.Subscriptions, in.CashPayments, prevRef.Month(), prevRef.Year(), loc)

	metrics := MetricSnapshot{
		MetricTotalMembers:      float64(len(in.Members)),
		MetricActiveMembers:     float64(activeMemberCount(in.Members, in.Subscriptions, ref)),
		MetricNewMembers:        last(growth),
		MetricMemberGrowthRate:  GrowthRate(last(growth), previous(growth)),
		MetricMonthlyRevenue:    thisRevenue,
		MetricRevenueGrowthRate: GrowthRate(thisRevenue, lastRevenue),
		MetricTotalRevenue:      Total(revenue),
		MetricRetentionRate:     RetentionRate(in.Members, in.Subscriptions, ref),
		MetricChurnRate:         ChurnRate(in.Members, in.Subscriptions, ref),
		MetricCompletionRate:    CompletionRate(in.Workouts),
		MetricAvgSessionMinutes: AverageSessionMinutes(in.Attendance),
		MetricMonthlyCheckIns:   last(monthlyCheckIns),
		MetricCheckInGrowthRate: GrowthRate(last(monthlyCheckIns), previous(monthlyCheckIns)),
		MetricTodayCheckIns:     last(dailyCheckIns),
	}

	return Dashboard{
		Reference:       ref,
		Revenue:         revenue,
		MemberGrowth:    growth,
		MonthlyCheckIns: monthlyCheckIns,
		DailyCheckIns:   dailyCheckIns,
		PeakHours:       PeakHours(checkinTimes, loc),
		Metrics:         metrics,
	}
}

func revenueDate(r records.RevenueRecord) (time.Time, bool) { return r.Date, true }

func revenueAmount(r records.RevenueRecord) float64 { return r.Amount }

func joinedDate(m records.Member) (time.Time, bool) {
	if m.JoinedAt == nil {
		return time.Time{}, false
	}
	return *m.JoinedAt, true
}

func checkInDate(a records.Attendance) (time.Time, bool) { return a.CheckIn, true }

func last(buckets []DateBucket) float64 {
	if len(buckets) == 0 {
		return 0
	}
	return buckets[len(buckets)-1].Value
}

func previous(buckets []DateBucket) float64 {
	if len(buckets) < 2 {
		return 0
	}
	return buckets[len(buckets)-2].Value
}
