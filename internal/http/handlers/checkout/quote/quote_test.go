package quote

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

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Quote(ctx context.Context, amountCents int64, code string) (models.Quote, error) {
	args := m.Called(ctx, amountCents, code)
	return args.Get(0).(models.Quote), args.Error(1)
}

func TestQuoteHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "discount applied",
			body: `{"amount_cents":999,"promo_code":"spring"}`,
			setupMock: func(m *MockService) {
				m.On("Quote", mock.Anything, int64(999), "spring").Return(models.Quote{
					OriginalCents: 999, DiscountCents: 199, FinalCents: 800, PromoCode: "SPRING", PromoApplied: true,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"final_cents":800`,
		},
		{
			name:           "zero amount",
			body:           `{"amount_cents":0}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"code":"VALIDATION_ERROR"`,
		},
		{
			name:           "broken json",
			body:           `amount`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"code":"BAD_REQUEST"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			handler := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			req := httptest.NewRequest(http.MethodPost, "/checkout/quote", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
