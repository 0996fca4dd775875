// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков: успешных ответов, ошибок
// предметной области и сообщений валидации в едином формате.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (при неуспехе).
// Поле Code — машинно‑читаемый код ошибки.
// Поле Data — данные ответа или подробности ошибки.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"insufficient credits"`
	Code   string `json:"code,omitempty" example:"INSUFFICIENT_CREDITS"`
	Data   any    `json:"data,omitempty"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// Коды ошибок, которые видит клиент.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeInvalidSectionKey   = "INVALID_SECTION_KEY"
	CodeNotInterpretable    = "NOT_INTERPRETABLE"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeInvalidUnlockMethod = "INVALID_UNLOCK_METHOD"
	CodeNotSubscriber       = "NOT_SUBSCRIBER"
	CodePaymentNotConfirmed = "PAYMENT_NOT_CONFIRMED"
	CodeDailyLimitReached   = "DAILY_LIMIT_REACHED"
	CodeInvalidRewardType   = "INVALID_REWARD_TYPE"
	CodeMissingContext      = "MISSING_CONTEXT"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodePromoExhausted      = "PROMO_EXHAUSTED"
	CodePromoInvalid        = "PROMO_INVALID"
	CodeUnknownReadingType  = "UNKNOWN_READING_TYPE"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeInternal            = "INTERNAL"
)

// OK возвращает успешный Response без данных.
func OK() Response {
	return Response{Status: StatusOK}
}

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой, кодом и сообщением.
func Error(code, msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
		Code:   code,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "gt", "gte":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
		Code:   CodeValidation,
	}
}

// FromError сопоставляет ошибку предметной области HTTP‑статусу и телу ответа.
// Ошибки бизнес‑правил несут подробности в Data. Неизвестные ошибки
// превращаются в 500 без раскрытия текста.
func FromError(err error) (int, Response) {
	var (
		ice *models.InsufficientCreditsError
		dle *models.DailyLimitError
		pee *models.PromoExhaustedError
		tme *models.TooManyClaimsError
	)
	switch {
	case errors.As(err, &ice):
		resp := Error(CodeInsufficientCredits, models.ErrInsufficientCredits.Error())
		resp.Data = map[string]any{"balance": ice.Balance, "required": ice.Required}
		return http.StatusBadRequest, resp
	case errors.As(err, &dle):
		resp := Error(CodeDailyLimitReached, models.ErrDailyLimitReached.Error())
		resp.Data = map[string]any{"limit": dle.Limit, "used": dle.Used}
		return http.StatusBadRequest, resp
	case errors.As(err, &pee):
		resp := Error(CodePromoExhausted, models.ErrPromoExhausted.Error())
		resp.Data = map[string]any{"max_uses": pee.MaxUses}
		return http.StatusBadRequest, resp
	case errors.As(err, &tme):
		resp := Error(CodeTooManyRequests, models.ErrTooManyClaims.Error())
		resp.Data = map[string]any{"retry_after": tme.RetryAfterSeconds}
		return http.StatusTooManyRequests, resp
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, Error(m.code, m.err.Error())
		}
	}
	return http.StatusInternalServerError, Error(CodeInternal, "internal error")
}

var mappings = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{models.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{models.ErrNotSubscriber, http.StatusForbidden, CodeNotSubscriber},
	{models.ErrConflict, http.StatusConflict, CodeConflict},
	{models.ErrInvalidSectionKey, http.StatusBadRequest, CodeInvalidSectionKey},
	{models.ErrNotInterpretable, http.StatusBadRequest, CodeNotInterpretable},
	{models.ErrInsufficientCredits, http.StatusBadRequest, CodeInsufficientCredits},
	{models.ErrInvalidUnlockMethod, http.StatusBadRequest, CodeInvalidUnlockMethod},
	{models.ErrPaymentNotConfirmed, http.StatusBadRequest, CodePaymentNotConfirmed},
	{models.ErrDailyLimitReached, http.StatusBadRequest, CodeDailyLimitReached},
	{models.ErrInvalidRewardType, http.StatusBadRequest, CodeInvalidRewardType},
	{models.ErrMissingContext, http.StatusBadRequest, CodeMissingContext},
	{models.ErrTooManyClaims, http.StatusTooManyRequests, CodeTooManyRequests},
	{models.ErrPromoExhausted, http.StatusBadRequest, CodePromoExhausted},
	{models.ErrPromoInvalid, http.StatusBadRequest, CodePromoInvalid},
	{models.ErrUnknownReadingType, http.StatusBadRequest, CodeUnknownReadingType},
	{models.ErrInvalidAmount, http.StatusBadRequest, CodeInvalidAmount},
}

// RenderError пишет ответ для ошибки err. Для 429 выставляется заголовок Retry-After.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := FromError(err)
	var tme *models.TooManyClaimsError
	if errors.As(err, &tme) {
		w.Header().Set("Retry-After", strconv.Itoa(tme.RetryAfterSeconds))
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
