package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpitbabbar/task-manager-arch/internal/service/auth"
)

// stubVerifier maps token strings to canned outcomes.
type stubVerifier struct {
	claims map[string]*auth.Claims
	errs   map[string]error
}

func (s *stubVerifier) VerifyToken(_ context.Context, tokenString string) (*auth.Claims, error) {
	if err, ok := s.errs[tokenString]; ok {
		return nil, err
	}
	if claims, ok := s.claims[tokenString]; ok {
		return claims, nil
	}
	return nil, auth.ErrInvalidToken
}

func newTestVerifier() *stubVerifier {
	return &stubVerifier{
		claims: map[string]*auth.Claims{
			"producer-token": {Subject: "caller-1", Roles: []string{auth.RoleProducer}},
			"admin-token":    {Subject: "caller-2", Roles: []string{auth.RoleProducer, auth.RoleAdmin}},
		},
		errs: map[string]error{
			"expired-token": auth.ErrExpiredToken,
			"broken-token":  errors.New("verifier exploded"),
		},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "missing header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not bearer",
			authHeader: "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed bearer",
			authHeader: "Bearer",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid token",
			authHeader: "Bearer no-such-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			authHeader: "Bearer expired-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "verifier error",
			authHeader: "Bearer broken-token",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "valid token",
			authHeader: "Bearer producer-token",
			wantStatus: http.StatusOK,
		},
	}

	m := NewAuthMiddleware(newTestVerifier())
	handler := m.Authenticate(okHandler())

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func TestAuthenticate_ClaimsReachTheHandler(t *testing.T) {
	m := NewAuthMiddleware(newTestVerifier())

	var got *auth.Claims
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaims(r)
		require.True(t, ok)
		got = claims
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "caller-2", got.Subject)
	assert.True(t, got.HasRole(auth.RoleAdmin))
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware(newTestVerifier())

	tests := []struct {
		name       string
		token      string
		role       string
		wantStatus int
	}{
		{
			name:       "role granted",
			token:      "producer-token",
			role:       auth.RoleProducer,
			wantStatus: http.StatusOK,
		},
		{
			name:       "role missing",
			token:      "producer-token",
			role:       auth.RoleAdmin,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin passes both",
			token:      "admin-token",
			role:       auth.RoleAdmin,
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := m.Authenticate(m.RequireRole(tc.role)(okHandler()))
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func TestRequireRole_WithoutAuthenticate(t *testing.T) {
	m := NewAuthMiddleware(newTestVerifier())
	handler := m.RequireRole(auth.RoleProducer)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
