package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/gymcore/internal/domain"
	"example.com/gymcore/internal/events"
	"example.com/gymcore/internal/records"
)

// Repository provides Postgres-backed persistence for activity rows, profiles and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ domain.Repository = (*Repository)(nil)

// inTenant runs fn in a transaction scoped to one gym, or to every gym when global is set.
func (r *Repository) inTenant(ctx context.Context, tenantID string, global bool, fn func(pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	scope := "off"
	if global {
		scope = "on"
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('app.global_scope', $1, true)", scope); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scopeFilter(scope domain.Scope) (string, bool) {
	if scope.Global {
		return "", true
	}
	return scope.TenantID, false
}

// ListWorkouts returns every workout log of a member.
func (r *Repository) ListWorkouts(ctx context.Context, tenantID, userID string) ([]records.WorkoutLog, error) {
	const query = `SELECT workout_id, user_id, completed_at, calories, completed
        FROM workout_logs WHERE gym_id=$1 AND user_id=$2`

	var out []records.WorkoutLog
	err := r.inTenant(ctx, tenantID, false, func(tx pgx.Tx) error {
		var err error
		out, err = collectWorkouts(ctx, tx, query, tenantID, userID)
		return err
	})
	return out, err
}

// ListMeals returns every meal log of a member.
func (r *Repository) ListMeals(ctx context.Context, tenantID, userID string) ([]records.MealLog, error) {
	const query = `SELECT meal_id, user_id, logged_at, calories
        FROM meal_logs WHERE gym_id=$1 AND user_id=$2`

	var out []records.MealLog
	err := r.inTenant(ctx, tenantID, false, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m records.MealLog
			if err := rows.Scan(&m.ID, &m.UserID, &m.LoggedAt, &m.Calories); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	return out, err
}

// ListCheckIns returns every attendance row of a member.
func (r *Repository) ListCheckIns(ctx context.Context, tenantID, userID string) ([]records.Attendance, error) {
	const query = `SELECT attendance_id, user_id, check_in, check_out
        FROM attendance WHERE gym_id=$1 AND user_id=$2`

	var out []records.Attendance
	err := r.inTenant(ctx, tenantID, false, func(tx pgx.Tx) error {
		var err error
		out, err = collectAttendance(ctx, tx, query, tenantID, userID)
		return err
	})
	return out, err
}

// OverwriteProfile upserts the scored profile fields and records a profile.refreshed outbox event
// inside a single transaction.
func (r *Repository) OverwriteProfile(ctx context.Context, profile domain.ActivityProfile) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", profile.TenantID); err != nil {
		return err
	}

	const upsert = `INSERT INTO profiles (gym_id, user_id, level, total_points, current_streak, max_streak, refreshed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (gym_id, user_id) DO UPDATE SET
            level = EXCLUDED.level,
            total_points = EXCLUDED.total_points,
            current_streak = EXCLUDED.current_streak,
            max_streak = EXCLUDED.max_streak,
            refreshed_at = EXCLUDED.refreshed_at`

	if _, err = tx.Exec(ctx, upsert,
		profile.TenantID,
		profile.UserID,
		profile.Level,
		profile.TotalPoints,
		profile.CurrentStreak,
		profile.MaxStreak,
		profile.RefreshedAt,
	); err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, profile, events.TypeProfileRefreshed, events.ProfileRefreshed{
		TenantID:      profile.TenantID,
		UserID:        profile.UserID,
		Level:         profile.Level,
		TotalPoints:   profile.TotalPoints,
		CurrentStreak: profile.CurrentStreak,
		MaxStreak:     profile.MaxStreak,
		RefreshedAt:   profile.RefreshedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, profile domain.ActivityProfile, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	aggregateID := fmt.Sprintf("%s:%s", profile.TenantID, profile.UserID)
	dedupeKey := fmt.Sprintf("%s:%s:%s", aggregateID, eventType, uuid.NewString())

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		profile.TenantID,
		"profile",
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(profile),
		body,
		dedupeKey,
	)
	return err
}

// GetProfile retrieves a member's profile, or nil when none has been computed yet.
func (r *Repository) GetProfile(ctx context.Context, tenantID, userID string) (*domain.ActivityProfile, error) {
	const query = `SELECT gym_id, user_id, level, total_points, current_streak, max_streak, refreshed_at
        FROM profiles WHERE gym_id=$1 AND user_id=$2`

	var profile *domain.ActivityProfile
	err := r.inTenant(ctx, tenantID, false, func(tx pgx.Tx) error {
		p, err := scanProfile(tx.QueryRow(ctx, query, tenantID, userID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		profile = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ListProfiles returns a gym's leaderboard ordered by total points, highest first, ties broken by user id.
func (r *Repository) ListProfiles(ctx context.Context, tenantID string, cursor *domain.Cursor, limit int) ([]domain.ActivityProfile, *domain.Cursor, error) {
	args := []interface{}{tenantID, limit}
	query := `SELECT gym_id, user_id, level, total_points, current_streak, max_streak, refreshed_at
        FROM profiles WHERE gym_id=$1`

	if cursor != nil {
		query += ` AND (total_points < $3 OR (total_points = $3 AND user_id > $4))`
		args = append(args, cursor.TotalPoints, cursor.UserID)
	}

	query += ` ORDER BY total_points DESC, user_id ASC LIMIT $2`

	results := make([]domain.ActivityProfile, 0, limit)
	err := r.inTenant(ctx, tenantID, false, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProfile(rows)
			if err != nil {
				return err
			}
			results = append(results, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{TotalPoints: last.TotalPoints, UserID: last.UserID}
	}
	return results, nextCursor, nil
}

// ListMembers returns members in scope.
func (r *Repository) ListMembers(ctx context.Context, scope domain.Scope) ([]records.Member, error) {
	const query = `SELECT member_id, gym_id, joined_at FROM members WHERE ($1 = '' OR gym_id = $1)`

	tenantID, global := scopeFilter(scope)
	var out []records.Member
	err := r.inTenant(ctx, scope.TenantID, global, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m records.Member
			if err := rows.Scan(&m.ID, &m.GymID, &m.JoinedAt); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	return out, err
}

// ListSubscriptions returns subscriptions in scope.
func (r *Repository) ListSubscriptions(ctx context.Context, scope domain.Scope) ([]records.Subscription, error) {
	const query = `SELECT subscription_id, member_id, status, amount_paid::float8, start_date, end_date, payment_date
        FROM subscriptions WHERE ($1 = '' OR gym_id = $1)`

	tenantID, global := scopeFilter(scope)
	var out []records.Subscription
	err := r.inTenant(ctx, scope.TenantID, global, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				s      records.Subscription
				status string
			)
			if err := rows.Scan(&s.ID, &s.MemberID, &status, &s.AmountPaid, &s.StartDate, &s.EndDate, &s.PaymentDate); err != nil {
				return err
			}
			s.Status = records.SubscriptionStatus(status)
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

// ListCashPayments returns cash payments in scope.
func (r *Repository) ListCashPayments(ctx context.Context, scope domain.Scope) ([]records.CashPayment, error) {
	const query = `SELECT payment_id, member_id, amount::float8, payment_date
        FROM cash_payments WHERE ($1 = '' OR gym_id = $1)`

	tenantID, global := scopeFilter(scope)
	var out []records.CashPayment
	err := r.inTenant(ctx, scope.TenantID, global, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c records.CashPayment
			if err := rows.Scan(&c.ID, &c.MemberID, &c.Amount, &c.PaymentDate); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// ListAttendance returns attendance rows in scope.
func (r *Repository) ListAttendance(ctx context.Context, scope domain.Scope) ([]records.Attendance, error) {
	const query = `SELECT attendance_id, user_id, check_in, check_out
        FROM attendance WHERE ($1 = '' OR gym_id = $1)`

	tenantID, global := scopeFilter(scope)
	var out []records.Attendance
	err := r.inTenant(ctx, scope.TenantID, global, func(tx pgx.Tx) error {
		var err error
		out, err = collectAttendance(ctx, tx, query, tenantID)
		return err
	})
	return out, err
}

// ListWorkoutLogs returns workout logs in scope.
func (r *Repository) ListWorkoutLogs(ctx context.Context, scope domain.Scope) ([]records.WorkoutLog, error) {
	const query = `SELECT workout_id, user_id, completed_at, calories, completed
        FROM workout_logs WHERE ($1 = '' OR gym_id = $1)`

	tenantID, global := scopeFilter(scope)
	var out []records.WorkoutLog
	err := r.inTenant(ctx, scope.TenantID, global, func(tx pgx.Tx) error {
		var err error
		out, err = collectWorkouts(ctx, tx, query, tenantID)
		return err
	})
	return out, err
}

func collectWorkouts(ctx context.Context, tx pgx.Tx, query string, args ...interface{}) ([]records.WorkoutLog, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []records.WorkoutLog
	for rows.Next() {
		var w records.WorkoutLog
		if err := rows.Scan(&w.ID, &w.UserID, &w.CompletedAt, &w.Calories, &w.Completed); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func collectAttendance(ctx context.Context, tx pgx.Tx, query string, args ...interface{}) ([]records.Attendance, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []records.Attendance
	for rows.Next() {
		var a records.Attendance
		if err := rows.Scan(&a.ID, &a.UserID, &a.CheckIn, &a.CheckOut); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (domain.ActivityProfile, error) {
	var (
		p           domain.ActivityProfile
		refreshedAt *time.Time
	)
	if err := row.Scan(&p.TenantID, &p.UserID, &p.Level, &p.TotalPoints, &p.CurrentStreak, &p.MaxStreak, &refreshedAt); err != nil {
		return domain.ActivityProfile{}, err
	}
	if refreshedAt != nil {
		p.RefreshedAt = refreshedAt.UTC()
	}
	return p, nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.ActivityProfile) string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeProfileRefreshed: {
		Topic:         "profile_events",
		SchemaSubject: "profile_events-value",
		PartitionKeyFn: func(p domain.ActivityProfile) string {
			return fmt.Sprintf("%s:%s", p.TenantID, p.UserID)
		},
	},
}
