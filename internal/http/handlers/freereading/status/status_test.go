package status

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) FreeTrialAvailable(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func TestStatusHandler(t *testing.T) {
	for _, available := range []bool{true, false} {
		svc := new(MockService)
		svc.On("FreeTrialAvailable", mock.Anything, "u-1").Return(available, nil)
		h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

		req := httptest.NewRequest(http.MethodGet, "/free-reading", nil)
		req = req.WithContext(middlewarectx.WithUser(req.Context(), "u-1", "user"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		if available {
			assert.Contains(t, w.Body.String(), `"available":true`)
		} else {
			assert.Contains(t, w.Body.String(), `"available":false`)
		}
		svc.AssertExpectations(t)
	}
}
