package domain

import (
	"time"

	"example.com/gymcore/internal/scoring"
)

// ActivityProfile is the persisted gamification summary for one member.
// Only Level, TotalPoints, CurrentStreak and MaxStreak are written by a refresh.
type ActivityProfile struct {
	TenantID      string
	UserID        string
	Level         int
	TotalPoints   int
	CurrentStreak int
	MaxStreak     int
	RefreshedAt   time.Time
}

func profileFromScore(tenantID, userID string, p scoring.Profile, at time.Time) ActivityProfile {
	return ActivityProfile{
		TenantID:      tenantID,
		UserID:        userID,
		Level:         p.Level,
		TotalPoints:   p.TotalPoints,
		CurrentStreak: p.CurrentStreak,
		MaxStreak:     p.MaxStreak,
		RefreshedAt:   at,
	}
}

// Cursor models the leaderboard pagination token.
type Cursor struct {
	TotalPoints int
	UserID      string
}

// Scope selects which gym's data a dashboard covers. Global spans every gym.
type Scope struct {
	TenantID string
	Global   bool
}
