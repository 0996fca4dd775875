package cancel

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

func (m *MockService) Cancel(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func TestCancelHandler(t *testing.T) {
	periodEnd := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name           string
		userID         string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "canceled",
			userID: "u-1",
			setupMock: func(m *MockService) {
				m.On("Cancel", mock.Anything, "u-1").Return(&models.Subscription{
					ID:        "s-1",
					UserID:    "u-1",
					Status:    models.SubscriptionCanceledPending,
					PeriodEnd: periodEnd,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"id":"s-1"`,
		},
		{
			name:   "no subscription",
			userID: "u-1",
			setupMock: func(m *MockService) {
				m.On("Cancel", mock.Anything, "u-1").Return(nil, models.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"code":"NOT_FOUND"`,
		},
		{
			name:           "unauthorized",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"code":"UNAUTHORIZED"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			req := httptest.NewRequest(http.MethodPost, "/subscription/cancel", nil)
			if tt.userID != "" {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), tt.userID, "user"))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
