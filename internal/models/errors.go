package models

import (
	"errors"
	"fmt"
)

// Ошибки предметной области. Обработчики сопоставляют их с HTTP‑статусами через errors.Is/As.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidSectionKey   = errors.New("invalid section key")
	ErrNotInterpretable    = errors.New("reading is not interpretable")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidUnlockMethod = errors.New("invalid unlock method")
	ErrNotSubscriber       = errors.New("no qualifying subscription")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	ErrDailyLimitReached   = errors.New("daily limit reached")
	ErrInvalidRewardType   = errors.New("invalid reward type")
	ErrMissingContext      = errors.New("missing context")
	ErrTooManyClaims       = errors.New("too many claims")
	ErrPromoExhausted      = errors.New("promo code exhausted")
	ErrPromoInvalid        = errors.New("promo code is not valid")
	ErrUnknownReadingType  = errors.New("unknown reading type")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// InsufficientCreditsError несёт текущий баланс и требуемую сумму.
type InsufficientCreditsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, required %d", e.Balance, e.Required)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }

// DailyLimitError несёт лимит и количество использованных просмотров за сутки.
type DailyLimitError struct {
	Limit int
	Used  int
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily limit reached: %d of %d views used", e.Used, e.Limit)
}

func (e *DailyLimitError) Unwrap() error { return ErrDailyLimitReached }

// PromoExhaustedError несёт лимит использований промокода.
type PromoExhaustedError struct {
	Code    string
	MaxUses int
}

func (e *PromoExhaustedError) Error() string {
	return fmt.Sprintf("promo code %s exhausted: max uses %d", e.Code, e.MaxUses)
}

func (e *PromoExhaustedError) Unwrap() error { return ErrPromoExhausted }

// TooManyClaimsError сообщает, через сколько секунд можно повторить заявку.
type TooManyClaimsError struct {
	RetryAfterSeconds int
}

func (e *TooManyClaimsError) Error() string {
	return fmt.Sprintf("too many claims, retry after %ds", e.RetryAfterSeconds)
}

func (e *TooManyClaimsError) Unwrap() error { return ErrTooManyClaims }
