// Package scoring turns raw activity events into the gamification profile: XP, level and streaks.
package scoring

import (
	"sort"
	"time"

	"example.com/gymcore/internal/records"
)

// Points awarded per event kind, and the XP needed per level.
const (
	WorkoutPoints  = 50
	MealPoints     = 25
	CheckInPoints  = 30
	PointsPerLevel = 1000
)

// Streaks holds the current and best run of consecutive active days.
type Streaks struct {
	Current int
	Max     int
}

// Profile is the derived gamification summary for one member.
type Profile struct {
	TotalPoints   int
	Level         int
	CurrentStreak int
	MaxStreak     int
	Workouts      int
	Meals         int
	CheckIns      int
}

// ComputeXP weights the three activity counts. Negative counts are treated as missing.
func ComputeXP(workouts, meals, checkins int) int {
	return nonNegative(workouts)*WorkoutPoints + nonNegative(meals)*MealPoints + nonNegative(checkins)*CheckInPoints
}

// ComputeLevel derives the level from total XP. Level 1 is the floor.
func ComputeLevel(totalXP int) int {
	if totalXP < 0 {
		return 1
	}
	return totalXP/PointsPerLevel + 1
}

// ComputeStreaks counts consecutive active calendar days in now's location.
func ComputeStreaks(dates []time.Time, now time.Time) Streaks {
	days := activeDays(dates, now.Location())
	if len(days) == 0 {
		return Streaks{}
	}

	today := dayOf(now, now.Location())
	current := 0
	if gap := daysBetween(days[0], today); gap == 0 || gap == 1 {
		current = 1
		for i := 1; i < len(days); i++ {
			if daysBetween(days[i], days[i-1]) != 1 {
				break
			}
			current++
		}
	}

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if daysBetween(days[i], days[i-1]) == 1 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}
	if current > longest {
		longest = current
	}

	return Streaks{Current: current, Max: longest}
}

// Score computes the full profile from pooled events.
func Score(events []records.ActivityEvent, now time.Time) Profile {
	var p Profile
	dates := make([]time.Time, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case records.KindWorkout:
			p.Workouts++
		case records.KindMeal:
			p.Meals++
		case records.KindCheckIn:
			p.CheckIns++
		default:
			continue
		}
		dates = append(dates, ev.Timestamp)
	}

	p.TotalPoints = ComputeXP(p.Workouts, p.Meals, p.CheckIns)
	p.Level = ComputeLevel(p.TotalPoints)
	streaks := ComputeStreaks(dates, now)
	p.CurrentStreak = streaks.Current
	p.MaxStreak = streaks.Max
	return p
}

// activeDays returns the distinct calendar days of dates in loc, most recent first.
// Days are represented as UTC midnights so day arithmetic is immune to DST shifts.
func activeDays(dates []time.Time, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		day := dayOf(d, loc)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns later-earlier in whole days.
func daysBetween(earlier, later time.Time) int {
	return int(later.Sub(earlier).Hours() / 24)
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
