// Package events defines the payloads exchanged over Kafka.
package events

import "time"

// Event types consumed from the activity topic and produced by the outbox.
const (
	TypeWorkoutCompleted = "workout.completed"
	TypeMealLogged       = "meal.logged"
	TypeCheckInRecorded  = "checkin.recorded"
	TypeProfileRefreshed = "profile.refreshed"
)

// ActivityRecorded is emitted by the app backend whenever a workout, meal or check-in row is written.
type ActivityRecorded struct {
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	RecordID   string    `json:"record_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProfileRefreshed carries the recomputed gamification profile.
type ProfileRefreshed struct {
	TenantID      string    `json:"tenant_id"`
	UserID        string    `json:"user_id"`
	Level         int       `json:"level"`
	TotalPoints   int       `json:"total_points"`
	CurrentStreak int       `json:"current_streak"`
	MaxStreak     int       `json:"max_streak"`
	RefreshedAt   time.Time `json:"refreshed_at"`
}
