// Package domain orchestrates profile refreshes and dashboard builds around the pure scoring and analytics code.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/gymcore/internal/analytics"
	"example.com/gymcore/internal/observability"
	"example.com/gymcore/internal/records"
	"example.com/gymcore/internal/scoring"
)

var (
	// ErrProfileNotFound is returned when no profile has been persisted for a member.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrRefreshFailed wraps any read or write failure during a profile refresh.
	// The previously persisted profile is left untouched.
	ErrRefreshFailed = errors.New("profile refresh failed")
	// ErrInvalidScope is returned for a gym-scoped request without a gym.
	ErrInvalidScope = errors.New("invalid analytics scope")
)

// EventSource reads the three activity tables for one member.
type EventSource interface {
	ListWorkouts(ctx context.Context, tenantID, userID string) ([]records.WorkoutLog, error)
	ListMeals(ctx context.Context, tenantID, userID string) ([]records.MealLog, error)
	ListCheckIns(ctx context.Context, tenantID, userID string) ([]records.Attendance, error)
}

// ProfileStore persists computed profiles.
type ProfileStore interface {
	// OverwriteProfile replaces the four scored fields of the member's profile.
	OverwriteProfile(ctx context.Context, profile ActivityProfile) error
	// GetProfile returns nil, nil when the member has no profile.
	GetProfile(ctx context.Context, tenantID, userID string) (*ActivityProfile, error)
	ListProfiles(ctx context.Context, tenantID string, cursor *Cursor, limit int) ([]ActivityProfile, *Cursor, error)
}

// AnalyticsSource reads the tables behind the admin dashboard.
type AnalyticsSource interface {
	ListMembers(ctx context.Context, scope Scope) ([]records.Member, error)
	ListSubscriptions(ctx context.Context, scope Scope) ([]records.Subscription, error)
	ListCashPayments(ctx context.Context, scope Scope) ([]records.CashPayment, error)
	ListAttendance(ctx context.Context, scope Scope) ([]records.Attendance, error)
	ListWorkoutLogs(ctx context.Context, scope Scope) ([]records.WorkoutLog, error)
}

// Repository captures every persistence operation the service needs.
type Repository interface {
	EventSource
	ProfileStore
	AnalyticsSource
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source used as "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the viewer timezone used for day and month boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger overrides the logger used to report refresh failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithDashboardMonths sets how many trailing months the dashboard charts.
func WithDashboardMonths(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.months = n
		}
	}
}

// Service orchestrates profile and analytics workflows.
type Service struct {
	repo   Repository
	now    func() time.Time
	loc    *time.Location
	logger *log.Logger
	months int
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		now:    time.Now,
		loc:    time.UTC,
		logger: log.New(log.Writer(), "[domain] ", log.LstdFlags),
		months: analytics.DefaultMonths,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the default viewer timezone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// RefreshProfile recomputes a member's profile from their full activity history and overwrites the stored one.
func (s *Service) RefreshProfile(ctx context.Context, tenantID, userID string) (*ActivityProfile, error) {
	return s.RefreshProfileIn(ctx, tenantID, userID, s.loc)
}

// RefreshProfileIn is RefreshProfile with streak days taken in the viewer's timezone.
func (s *Service) RefreshProfileIn(ctx context.Context, tenantID, userID string, loc *time.Location) (*ActivityProfile, error) {
	start := time.Now()
	if loc == nil {
		loc = s.loc
	}

	var (
		workouts []records.WorkoutLog
		meals    []records.MealLog
		checkins []records.Attendance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		workouts, err = s.repo.ListWorkouts(gctx, tenantID, userID)
		return wrapRead("workouts", err)
	})
	g.Go(func() (err error) {
		meals, err = s.repo.ListMeals(gctx, tenantID, userID)
		return wrapRead("meals", err)
	})
	g.Go(func() (err error) {
		checkins, err = s.repo.ListCheckIns(gctx, tenantID, userID)
		return wrapRead("check-ins", err)
	})
	if err := g.Wait(); err != nil {
		return nil, s.refreshFailed(tenantID, userID, start, err)
	}

	now := s.now().In(loc)
	scored := scoring.Score(records.Events(workouts, meals, checkins), now)
	profile := profileFromScore(tenantID, userID, scored, now.UTC())

	if err := s.repo.OverwriteProfile(ctx, profile); err != nil {
		return nil, s.refreshFailed(tenantID, userID, start, fmt.Errorf("overwrite profile: %w", err))
	}

	observability.RecordRefresh(observability.OutcomeSuccess, time.Since(start))
	observability.RecordProfileRefreshed(profile.RefreshedAt)
	return &profile, nil
}

func (s *Service) refreshFailed(tenantID, userID string, start time.Time, err error) error {
	observability.RecordRefresh(observability.OutcomeFailure, time.Since(start))
	s.logger.Printf("profile refresh failed (tenant=%s, user=%s): %v", tenantID, userID, err)
	return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
}

func wrapRead(what string, err error) error {
	if err != nil {
		return fmt.Errorf("list %s: %w", what, err)
	}
	return nil
}

// GetProfile returns the persisted profile.
func (s *Service) GetProfile(ctx context.Context, tenantID, userID string) (*ActivityProfile, error) {
	profile, err := s.repo.GetProfile(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// Leaderboard lists a gym's profiles by total points with cursor pagination.
func (s *Service) Leaderboard(ctx context.Context, tenantID string, cursor *Cursor, limit int) ([]ActivityProfile, *Cursor, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListProfiles(ctx, tenantID, cursor, limit)
}

// Dashboard fetches the analytics tables concurrently and builds the dashboard relative to ref.
// A zero ref means now in the service's location.
func (s *Service) Dashboard(ctx context.Context, scope Scope, ref time.Time) (*analytics.Dashboard, error) {
	if !scope.Global && scope.TenantID == "" {
		return nil, ErrInvalidScope
	}
	if ref.IsZero() {
		ref = s.now().In(s.loc)
	}

	var in analytics.Input
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Members, err = s.repo.ListMembers(gctx, scope)
		return wrapRead("members", err)
	})
	g.Go(func() (err error) {
		in.Subscriptions, err = s.repo.ListSubscriptions(gctx, scope)
		return wrapRead("subscriptions", err)
	})
	g.Go(func() (err error) {
		in.CashPayments, err = s.repo.ListCashPayments(gctx, scope)
		return wrapRead("cash payments", err)
	})
	g.Go(func() (err error) {
		in.Attendance, err = s.repo.ListAttendance(gctx, scope)
		return wrapRead("attendance", err)
	})
	g.Go(func() (err error) {
		in.Workouts, err = s.repo.ListWorkoutLogs(gctx, scope)
		return wrapRead("workout logs", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dashboard := analytics.BuildDashboard(in, ref, s.months)
	observability.RecordDashboardBuilt(scope.Global)
	return &dashboard, nil
}
