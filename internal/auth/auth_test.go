package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "test-issuer"}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       "admin-1",
		"tenant_id": "gym-1",
		"iss":       "test-issuer",
		"exp":       time.Now().Add(time.Hour).Unix(),
		"scopes":    "profiles:read analytics:read",
	}
}

func TestParseNormalizesScopes(t *testing.T) {
	claims, err := Parse(signToken(t, validClaims(), testConfig.Secret), testConfig)
	require.NoError(t, err)
	require.Equal(t, "gym-1", claims.TenantID)
	require.True(t, claims.HasScope(ScopeProfilesRead))
	require.True(t, claims.HasAnyScope(ScopeProfilesWrite, ScopeAnalyticsRead))
	require.False(t, claims.HasScope(ScopeAnalyticsGlobal))
}

func TestParseRejectsBadTokens(t *testing.T) {
	_, err := Parse("", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = Parse(signToken(t, validClaims(), "other-secret"), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	noTenant := validClaims()
	delete(noTenant, "tenant_id")
	_, err = Parse(signToken(t, noTenant, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	_, err = Parse(signToken(t, expired, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareAttachesClaims(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig).Wrap(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(), testConfig.Secret))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	require.Equal(t, "admin-1", seen.Subject)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestAuthorize(t *testing.T) {
	_, err := Authorize(context.Background(), ScopeProfilesRead)
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = Authorize(WithClaims(context.Background(), nil))
	require.ErrorIs(t, err, ErrMissingToken)

	claims := &Claims{Subject: "u-1", TenantID: "t-1", Scopes: map[string]struct{}{ScopeProfilesRead: {}}}
	ctx := WithClaims(context.Background(), claims)

	got, err := Authorize(ctx, ScopeAnalyticsGlobal, ScopeProfilesRead)
	require.NoError(t, err)
	require.Same(t, claims, got)

	_, err = Authorize(ctx, ScopeAnalyticsGlobal)
	require.ErrorIs(t, err, ErrForbidden)
	require.Contains(t, err.Error(), ScopeAnalyticsGlobal)
}
