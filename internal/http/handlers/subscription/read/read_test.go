package read

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Current(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func TestReadHandler(t *testing.T) {
	tests := []struct {
		name           string
		sub            *models.Subscription
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "active subscription",
			sub: &models.Subscription{
				ID: "s-1", UserID: "u-1", Tier: models.TierPro, Status: models.SubscriptionActive,
				PeriodEnd: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"tier":"PRO","status":"ACTIVE"`,
		},
		{
			name:           "no subscription",
			err:            models.ErrNotFound,
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"code":"NOT_FOUND"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Current", mock.Anything, "u-1").Return(tt.sub, tt.err)
			handler := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			req := httptest.NewRequest(http.MethodGet, "/subscription", nil)
			req = req.WithContext(middlewarectx.WithUser(req.Context(), "u-1", "user"))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
