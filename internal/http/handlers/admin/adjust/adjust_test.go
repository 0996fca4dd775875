package adjust

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Adjust(ctx context.Context, adminID, userID string, delta int64, note string) (int64, error) {
	args := m.Called(ctx, adminID, userID, delta, note)
	return args.Get(0).(int64), args.Error(1)
}

func TestAdjustHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "grant",
			body: `{"user_id":"u-7","delta":25,"note":"support ticket 118"}`,
			setupMock: func(m *MockService) {
				m.On("Adjust", mock.Anything, "admin-1", "u-7", int64(25), "support ticket 118").Return(int64(30), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"balance":30`,
		},
		{
			name: "cannot go negative",
			body: `{"user_id":"u-7","delta":-100}`,
			setupMock: func(m *MockService) {
				m.On("Adjust", mock.Anything, "admin-1", "u-7", int64(-100), "").
					Return(int64(0), &models.InsufficientCreditsError{Balance: 30, Required: 100})
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"code":"INSUFFICIENT_CREDITS"`,
		},
		{
			name:           "zero delta",
			body:           `{"user_id":"u-7","delta":0}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"code":"VALIDATION_ERROR"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			handler := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			req := httptest.NewRequest(http.MethodPost, "/admin/credits/adjust", strings.NewReader(tt.body))
			req = req.WithContext(middlewarectx.WithUser(req.Context(), "admin-1", "admin"))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
