// Package api exposes HTTP handlers for profiles, the leaderboard and the admin dashboard.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/gymcore/internal/analytics"
	"example.com/gymcore/internal/auth"
	"example.com/gymcore/internal/domain"
	"example.com/gymcore/internal/persistence"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
	refDateLayout           = "2006-01-02"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/profiles/", h.profileRoutes)
	mux.HandleFunc("/v1/leaderboard", h.leaderboard)
	mux.HandleFunc("/v1/analytics/dashboard", h.dashboard)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// profileRoutes serves /v1/profiles/{user_id} and /v1/profiles/{user_id}/refresh.
func (h *Handler) profileRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/profiles/"), "/")
	userID, action, _ := strings.Cut(rest, "/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing user id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getProfile(w, r, userID)
	case action == "refresh" && r.Method == http.MethodPost:
		h.refreshProfile(w, r, userID)
	case action == "" || action == "refresh":
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown profile resource")
	}
}

func (h *Handler) refreshProfile(w http.ResponseWriter, r *http.Request, userID string) {
	claims, ok := requireScope(w, r, auth.ScopeProfilesWrite)
	if !ok {
		return
	}
	loc, ok := h.viewerLocation(w, r)
	if !ok {
		return
	}

	profile, err := h.service.RefreshProfileIn(r.Context(), claims.TenantID, userID, loc)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshFailed) {
			writeError(w, http.StatusBadGateway, "refresh_failed", "profile could not be recomputed; the stored profile is unchanged")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request, userID string) {
	claims, ok := requireScope(w, r, auth.ScopeProfilesRead, auth.ScopeProfilesWrite)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), claims.TenantID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeProfilesRead, auth.ScopeProfilesWrite)
	if !ok {
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxLeaderboardLimit)
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	profiles, next, err := h.service.Leaderboard(r.Context(), claims.TenantID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ProfileView, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, toProfileView(p))
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeAnalyticsRead)
	if !ok {
		return
	}

	scope := domain.Scope{TenantID: claims.TenantID}
	switch r.URL.Query().Get("scope") {
	case "", "gym":
	case "global":
		if !claims.HasScope(auth.ScopeAnalyticsGlobal) {
			writeError(w, http.StatusForbidden, "forbidden", "scope analytics:global required")
			return
		}
		scope = domain.Scope{Global: true}
	default:
		writeError(w, http.StatusBadRequest, "validation_failed", "scope must be gym or global")
		return
	}

	loc, ok := h.viewerLocation(w, r)
	if !ok {
		return
	}

	ref := h.service.Now().In(loc)
	if raw := r.URL.Query().Get("ref"); raw != "" {
		day, err := time.ParseInLocation(refDateLayout, raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "ref must be YYYY-MM-DD")
			return
		}
		// End of the requested day, so everything logged on it counts.
		ref = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	dashboard, err := h.service.Dashboard(r.Context(), scope, ref)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidScope) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	scopeName := "gym"
	if scope.Global {
		scopeName = "global"
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(*dashboard, scopeName, loc))
}

// viewerLocation resolves the tz query parameter, defaulting to the service location.
func (h *Handler) viewerLocation(w http.ResponseWriter, r *http.Request) (*time.Location, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("tz"))
	if raw == "" {
		return h.service.Location(), true
	}
	loc, err := time.LoadLocation(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown timezone")
		return nil, false
	}
	return loc, true
}

// requireScope extracts claims and checks that at least one of scopes is granted.
func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, err := auth.Authorize(r.Context(), scopes...)
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	case err != nil:
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
		return nil, false
	}
	return claims, true
}

// ProfileView is the JSON shape of an activity profile.
type ProfileView struct {
	TenantID      string     `json:"tenant_id"`
	UserID        string     `json:"user_id"`
	Level         int        `json:"level"`
	TotalPoints   int        `json:"total_points"`
	CurrentStreak int        `json:"current_streak"`
	MaxStreak     int        `json:"max_streak"`
	RefreshedAt   *time.Time `json:"refreshed_at,omitempty"`
}

// LeaderboardResponse packages a leaderboard page.
type LeaderboardResponse struct {
	Items      []ProfileView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// BucketView is one point of a trend series.
type BucketView struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Value float64   `json:"value"`
}

// SeriesView carries the raw buckets and the values a chart should plot.
type SeriesView struct {
	Buckets []BucketView `json:"buckets"`
	Chart   []float64    `json:"chart"`
}

// PeakHoursView describes the busiest check-in window.
type PeakHoursView struct {
	Found bool   `json:"found"`
	Hour  int    `json:"hour"`
	Count int    `json:"count"`
	Label string `json:"label"`
}

// DashboardResponse is the body of GET /v1/analytics/dashboard.
type DashboardResponse struct {
	Scope           string             `json:"scope"`
	Timezone        string             `json:"timezone"`
	Reference       time.Time          `json:"reference"`
	Revenue         SeriesView         `json:"revenue"`
	MemberGrowth    SeriesView         `json:"member_growth"`
	MonthlyCheckIns SeriesView         `json:"monthly_checkins"`
	DailyCheckIns   SeriesView         `json:"daily_checkins"`
	PeakHours       PeakHoursView      `json:"peak_hours"`
	Metrics         map[string]float64 `json:"metrics"`
}

func toProfileView(p domain.ActivityProfile) ProfileView {
	view := ProfileView{
		TenantID:      p.TenantID,
		UserID:        p.UserID,
		Level:         p.Level,
		TotalPoints:   p.TotalPoints,
		CurrentStreak: p.CurrentStreak,
		MaxStreak:     p.MaxStreak,
	}
	if !p.RefreshedAt.IsZero() {
		ts := p.RefreshedAt
		view.RefreshedAt = &ts
	}
	return view
}

func toDashboardResponse(d analytics.Dashboard, scope string, loc *time.Location) DashboardResponse {
	return DashboardResponse{
		Scope:           scope,
		Timezone:        loc.String(),
		Reference:       d.Reference,
		Revenue:         toSeriesView(d.Revenue),
		MemberGrowth:    toSeriesView(d.MemberGrowth),
		MonthlyCheckIns: toSeriesView(d.MonthlyCheckIns),
		DailyCheckIns:   toSeriesView(d.DailyCheckIns),
		PeakHours: PeakHoursView{
			Found: d.PeakHours.Found,
			Hour:  d.PeakHours.Hour,
			Count: d.PeakHours.Count,
			Label: d.PeakHours.Label,
		},
		Metrics: d.Metrics,
	}
}

func toSeriesView(buckets []analytics.DateBucket) SeriesView {
	view := SeriesView{Buckets: make([]BucketView, 0, len(buckets))}
	values := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		view.Buckets = append(view.Buckets, BucketView{Label: b.Label, Start: b.Start, End: b.End, Value: b.Value})
		values = append(values, b.Value)
	}
	view.Chart = chartValues(values)
	return view
}

// chartPlaceholder keeps charting libraries from collapsing an all-zero axis.
const chartPlaceholder = 0.1

// chartValues returns values for plotting. An all-zero series gets its last point nudged to chartPlaceholder.
func chartValues(values []float64) []float64 {
	out := append([]float64(nil), values...)
	if len(out) == 0 {
		return out
	}
	for _, v := range out {
		if v != 0 {
			return out
		}
	}
	out[len(out)-1] = chartPlaceholder
	return out
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
