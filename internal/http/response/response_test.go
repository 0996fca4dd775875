package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantData   map[string]any
	}{
		{
			name:       "insufficient credits carries balance",
			err:        fmt.Errorf("services.unlock: %w", &models.InsufficientCreditsError{Balance: 3, Required: 10}),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInsufficientCredits,
			wantData:   map[string]any{"balance": int64(3), "required": int64(10)},
		},
		{
			name:       "daily limit",
			err:        &models.DailyLimitError{Limit: 5, Used: 5},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeDailyLimitReached,
			wantData:   map[string]any{"limit": 5, "used": 5},
		},
		{
			name:       "promo exhausted",
			err:        &models.PromoExhaustedError{Code: "X", MaxUses: 100},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodePromoExhausted,
			wantData:   map[string]any{"max_uses": 100},
		},
		{
			name:       "too many claims",
			err:        &models.TooManyClaimsError{RetryAfterSeconds: 7},
			wantStatus: http.StatusTooManyRequests,
			wantCode:   CodeTooManyRequests,
			wantData:   map[string]any{"retry_after": 7},
		},
		{name: "not found", err: fmt.Errorf("storage.GetReading: %w", models.ErrNotFound), wantStatus: http.StatusNotFound, wantCode: CodeNotFound},
		{name: "forbidden", err: models.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: CodeForbidden},
		{name: "not subscriber", err: models.ErrNotSubscriber, wantStatus: http.StatusForbidden, wantCode: CodeNotSubscriber},
		{name: "invalid section key", err: models.ErrInvalidSectionKey, wantStatus: http.StatusBadRequest, wantCode: CodeInvalidSectionKey},
		{name: "not interpretable", err: models.ErrNotInterpretable, wantStatus: http.StatusBadRequest, wantCode: CodeNotInterpretable},
		{name: "payment not confirmed", err: models.ErrPaymentNotConfirmed, wantStatus: http.StatusBadRequest, wantCode: CodePaymentNotConfirmed},
		{name: "missing context", err: models.ErrMissingContext, wantStatus: http.StatusBadRequest, wantCode: CodeMissingContext},
		{name: "unknown reading type", err: models.ErrUnknownReadingType, wantStatus: http.StatusBadRequest, wantCode: CodeUnknownReadingType},
		{name: "unexpected", err: errors.New("pq: connection refused"), wantStatus: http.StatusInternalServerError, wantCode: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantData != nil {
				assert.Equal(t, tt.wantData, resp.Data)
			} else {
				assert.Nil(t, resp.Data)
			}
		})
	}
}

func TestFromError_HidesInternalText(t *testing.T) {
	_, resp := FromError(errors.New("password=secret"))
	assert.Equal(t, "internal error", resp.Error)
}

func TestRenderError_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/ads/claim", nil)

	RenderError(w, r, &models.TooManyClaimsError{RetryAfterSeconds: 12})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "12", w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Error", body["status"])
	assert.Equal(t, CodeTooManyRequests, body["code"])
}

func TestValidationError(t *testing.T) {
	type req struct {
		Method string `validate:"required"`
		Amount int64  `validate:"gt=0"`
	}
	err := validator.New().Struct(req{})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, CodeValidation, resp.Code)
	assert.Contains(t, resp.Error, "field Method is a required field")
	assert.Contains(t, resp.Error, "field Amount must be greater than 0")
}
