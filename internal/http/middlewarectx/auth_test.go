package middlewarectx_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/jwt"
)

// ParserMock мокает проверку токена.
type ParserMock struct {
	mock.Mock
}

func (m *ParserMock) ParseToken(token string) (*jwt.Claims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*jwt.Claims)
	return claims, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		mockClaims     *jwt.Claims
		mockErr        error
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "missing Authorization header",
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "invalid Authorization header prefix",
			authHeader:     "Basic sometoken",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "token validation error",
			authHeader:     "Bearer token",
			mockErr:        errors.New("token is expired"),
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "valid token",
			authHeader:     "Bearer validtoken",
			mockClaims:     &jwt.Claims{UserID: "u-1", Role: jwt.RoleUser},
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := new(ParserMock)
			if tt.mockClaims != nil || tt.mockErr != nil {
				parser.On("ParseToken", mock.Anything).Return(tt.mockClaims, tt.mockErr).Once()
			}

			handlerCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				userID, ok := middlewarectx.UserID(r.Context())
				assert.True(t, ok)
				assert.Equal(t, "u-1", userID)
				assert.Equal(t, jwt.RoleUser, r.Context().Value(middlewarectx.Role))
				w.WriteHeader(http.StatusOK)
			})
			h := middlewarectx.JWTMiddleware(parser, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
			parser.AssertExpectations(t)
		})
	}
}

func TestJWTMiddleware_RealToken(t *testing.T) {
	verifier := jwt.NewHS256("secret", time.Hour, "")
	token, err := verifier.GenerateToken("u-42", jwt.RoleAdmin)
	assert.NoError(t, err)

	var gotUser, gotRole any
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Context().Value(middlewarectx.User)
		gotRole = r.Context().Value(middlewarectx.Role)
	})
	h := middlewarectx.JWTMiddleware(verifier, newNoopLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "u-42", gotUser)
	assert.Equal(t, jwt.RoleAdmin, gotRole)
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := middlewarectx.RequireRole(jwt.RoleAdmin, newNoopLogger())(next)

	tests := []struct {
		name string
		role string
		want int
	}{
		{name: "admin", role: jwt.RoleAdmin, want: http.StatusNoContent},
		{name: "user", role: jwt.RoleUser, want: http.StatusForbidden},
		{name: "anonymous", role: "", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/audit", nil)
			if tt.role != "" {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), "u-1", tt.role))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimiter_PerUser(t *testing.T) {
	limiter := middlewarectx.NewRateLimiter(0.001, 2)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := limiter.Middleware(newNoopLogger())(next)

	call := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/credits/balance", nil)
		req = req.WithContext(middlewarectx.WithUser(req.Context(), userID, jwt.RoleUser))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	assert.Equal(t, http.StatusOK, call("b"))
}
