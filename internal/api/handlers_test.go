package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/gymcore/internal/analytics"
	"example.com/gymcore/internal/auth"
	"example.com/gymcore/internal/domain"
	"example.com/gymcore/internal/persistence"
	"example.com/gymcore/internal/records"
)

var testNow = time.Date(2025, time.October, 27, 20, 0, 0, 0, time.UTC)

func newTestHandler(repo *mockRepo) (*Handler, *http.ServeMux) {
	service := domain.NewService(repo,
		domain.WithClock(func() time.Time { return testNow }),
		domain.WithLogger(log.New(io.Discard, "", 0)),
	)
	handler := NewHandler(service)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return handler, mux
}

func withClaims(req *http.Request, scopes ...string) *http.Request {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
		Subject:   "tester",
		TenantID:  "gym-1",
		Scopes:    set,
		ExpiresAt: time.Now().Add(time.Hour),
	}))
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestRefreshProfileSuccess(t *testing.T) {
	repo := &mockRepo{
		workouts: []records.WorkoutLog{{CompletedAt: testNow, Completed: true}},
		meals:    []records.MealLog{{LoggedAt: testNow.Add(-24 * time.Hour)}},
	}
	_, mux := newTestHandler(repo)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/profiles/user-1/refresh", nil), auth.ScopeProfilesWrite)
	rr := serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ProfileView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TotalPoints != 75 || resp.Level != 1 || resp.CurrentStreak != 2 {
		t.Fatalf("unexpected profile %+v", resp)
	}
	if len(repo.written) != 1 || repo.written[0].TenantID != "gym-1" {
		t.Fatalf("expected one overwrite for gym-1, got %+v", repo.written)
	}
}

func TestRefreshProfileFailureIsBadGateway(t *testing.T) {
	_, mux := newTestHandler(&mockRepo{err: errors.New("db down")})

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/profiles/user-1/refresh", nil), auth.ScopeProfilesWrite)
	rr := serve(mux, req)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rr.Code)
	}
}

func TestRefreshProfileRequiresWriteScope(t *testing.T) {
	_, mux := newTestHandler(&mockRepo{})

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/profiles/user-1/refresh", nil), auth.ScopeProfilesRead)
	if rr := serve(mux, req); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}

	if rr := serve(mux, httptest.NewRequest(http.MethodPost, "/v1/profiles/user-1/refresh", nil)); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestRefreshProfileRejectsUnknownTimezone(t *testing.T) {
	_, mux := newTestHandler(&mockRepo{})

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/profiles/user-1/refresh?tz=Nowhere/Land", nil), auth.ScopeProfilesWrite)
	if rr := serve(mux, req); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestGetProfile(t *testing.T) {
	repo := &mockRepo{profiles: map[string]domain.ActivityProfile{
		"user-1": {TenantID: "gym-1", UserID: "user-1", Level: 3, TotalPoints: 2100, RefreshedAt: testNow},
	}}
	_, mux := newTestHandler(repo)

	rr := serve(mux, withClaims(httptest.NewRequest(http.MethodGet, "/v1/profiles/user-1", nil), auth.ScopeProfilesRead))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var resp ProfileView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Level != 3 || resp.RefreshedAt == nil {
		t.Fatalf("unexpected profile %+v", resp)
	}

	rr = serve(mux, withClaims(httptest.NewRequest(http.MethodGet, "/v1/profiles/ghost", nil), auth.ScopeProfilesRead))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}

	rr = serve(mux, withClaims(httptest.NewRequest(http.MethodDelete, "/v1/profiles/user-1", nil), auth.ScopeProfilesRead))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
}

func TestLeaderboardPassesCursorAndLimit(t *testing.T) {
	repo := &mockRepo{
		page: []domain.ActivityProfile{{TenantID: "gym-1", UserID: "a", TotalPoints: 900}},
		next: &domain.Cursor{TotalPoints: 900, UserID: "a"},
	}
	_, mux := newTestHandler(repo)

	cursor := persistence.EncodeCursor(&domain.Cursor{TotalPoints: 1200, UserID: "z"})
	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/leaderboard?limit=500&cursor="+cursor, nil), auth.ScopeProfilesRead)
	rr := serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if repo.lastLimit != maxLeaderboardLimit {
		t.Fatalf("expected limit clamped to %d got %d", maxLeaderboardLimit, repo.lastLimit)
	}
	if repo.lastCursor == nil || repo.lastCursor.UserID != "z" || repo.lastCursor.TotalPoints != 1200 {
		t.Fatalf("cursor not forwarded: %+v", repo.lastCursor)
	}

	var resp LeaderboardResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.NextCursor != persistence.EncodeCursor(repo.next) {
		t.Fatalf("unexpected leaderboard %+v", resp)
	}

	req = withClaims(httptest.NewRequest(http.MethodGet, "/v1/leaderboard?cursor=!!", nil), auth.ScopeProfilesRead)
	if rr := serve(mux, req); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestDashboardGymScope(t *testing.T) {
	joined := time.Date(2025, time.October, 3, 9, 0, 0, 0, time.UTC)
	paid := time.Date(2025, time.October, 5, 9, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		members: []records.Member{{ID: "m1", GymID: "gym-1", JoinedAt: &joined}},
		subs: []records.Subscription{{
			ID: "s1", MemberID: "m1", Status: records.SubscriptionActive, AmountPaid: 50,
			StartDate: &paid, PaymentDate: &paid,
		}},
		attendance: []records.Attendance{{CheckIn: time.Date(2025, time.October, 20, 19, 15, 0, 0, time.UTC)}},
	}
	_, mux := newTestHandler(repo)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/analytics/dashboard?ref=2025-10-20", nil), auth.ScopeAnalyticsRead)
	rr := serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if repo.lastScope.Global || repo.lastScope.TenantID != "gym-1" {
		t.Fatalf("unexpected scope %+v", repo.lastScope)
	}

	var resp DashboardResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Scope != "gym" || resp.Timezone != "UTC" {
		t.Fatalf("unexpected scope/timezone %s/%s", resp.Scope, resp.Timezone)
	}
	if got := len(resp.Revenue.Buckets); got != analytics.DefaultMonths {
		t.Fatalf("expected %d revenue buckets got %d", analytics.DefaultMonths, got)
	}
	if last := resp.Revenue.Buckets[len(resp.Revenue.Buckets)-1]; last.Label != "Oct" || last.Value != 50 {
		t.Fatalf("unexpected current revenue bucket %+v", last)
	}
	if resp.Metrics[analytics.MetricMonthlyRevenue] != 50 {
		t.Fatalf("unexpected monthly revenue %v", resp.Metrics[analytics.MetricMonthlyRevenue])
	}
	if !resp.PeakHours.Found || resp.PeakHours.Label != "7:00 PM - 9:00 PM" {
		t.Fatalf("unexpected peak hours %+v", resp.PeakHours)
	}
	if resp.Reference.Day() != 20 {
		t.Fatalf("expected reference on the 20th, got %s", resp.Reference)
	}
}

func TestDashboardGlobalScopeRequiresGrant(t *testing.T) {
	repo := &mockRepo{}
	_, mux := newTestHandler(repo)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/analytics/dashboard?scope=global", nil), auth.ScopeAnalyticsRead)
	if rr := serve(mux, req); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}

	req = withClaims(httptest.NewRequest(http.MethodGet, "/v1/analytics/dashboard?scope=global", nil), auth.ScopeAnalyticsRead, auth.ScopeAnalyticsGlobal)
	rr := serve(mux, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if !repo.lastScope.Global {
		t.Fatalf("expected global scope")
	}

	var resp DashboardResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	chart := resp.DailyCheckIns.Chart
	if chart[len(chart)-1] != chartPlaceholder {
		t.Fatalf("expected placeholder on empty series, got %v", chart)
	}
	if resp.DailyCheckIns.Buckets[len(chart)-1].Value != 0 {
		t.Fatalf("raw buckets must stay zero")
	}
}

func TestDashboardValidation(t *testing.T) {
	_, mux := newTestHandler(&mockRepo{})

	for _, query := range []string{"?scope=planet", "?ref=20-10-2025", "?tz=Nowhere/Land"} {
		req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/analytics/dashboard"+query, nil), auth.ScopeAnalyticsRead)
		if rr := serve(mux, req); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", query, rr.Code)
		}
	}
}

func TestChartValues(t *testing.T) {
	if got := chartValues([]float64{0, 0, 0}); got[2] != chartPlaceholder || got[0] != 0 {
		t.Fatalf("unexpected chart %v", got)
	}
	if got := chartValues([]float64{0, 3, 0}); got[2] != 0 {
		t.Fatalf("non-zero series must be unchanged, got %v", got)
	}
	if got := chartValues(nil); len(got) != 0 {
		t.Fatalf("expected empty chart, got %v", got)
	}
}

func TestHealthz(t *testing.T) {
	_, mux := newTestHandler(&mockRepo{})
	if rr := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}

type mockRepo struct {
	err error

	workouts   []records.WorkoutLog
	meals      []records.MealLog
	checkins   []records.Attendance
	members    []records.Member
	subs       []records.Subscription
	attendance []records.Attendance

	profiles map[string]domain.ActivityProfile
	written  []domain.ActivityProfile

	page       []domain.ActivityProfile
	next       *domain.Cursor
	lastCursor *domain.Cursor
	lastLimit  int
	lastScope  domain.Scope
}

func (m *mockRepo) ListWorkouts(ctx context.Context, tenantID, userID string) ([]records.WorkoutLog, error) {
	return m.workouts, m.err
}

func (m *mockRepo) ListMeals(ctx context.Context, tenantID, userID string) ([]records.MealLog, error) {
	return m.meals, m.err
}

func (m *mockRepo) ListCheckIns(ctx context.Context, tenantID, userID string) ([]records.Attendance, error) {
	return m.checkins, m.err
}

func (m *mockRepo) OverwriteProfile(ctx context.Context, profile domain.ActivityProfile) error {
	m.written = append(m.written, profile)
	return nil
}

func (m *mockRepo) GetProfile(ctx context.Context, tenantID, userID string) (*domain.ActivityProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockRepo) ListProfiles(ctx context.Context, tenantID string, cursor *domain.Cursor, limit int) ([]domain.ActivityProfile, *domain.Cursor, error) {
	m.lastCursor = cursor
	m.lastLimit = limit
	return m.page, m.next, nil
}

func (m *mockRepo) ListMembers(ctx context.Context, scope domain.Scope) ([]records.Member, error) {
	m.lastScope = scope
	return m.members, nil
}

func (m *mockRepo) ListSubscriptions(ctx context.Context, scope domain.Scope) ([]records.Subscription, error) {
	return m.subs, nil
}

func (m *mockRepo) ListCashPayments(ctx context.Context, scope domain.Scope) ([]records.CashPayment, error) {
	return nil, nil
}

func (m *mockRepo) ListAttendance(ctx context.Context, scope domain.Scope) ([]records.Attendance, error) {
	return m.attendance, nil
}

func (m *mockRepo) ListWorkoutLogs(ctx context.Context, scope domain.Scope) ([]records.WorkoutLog, error) {
	return nil, nil
}
