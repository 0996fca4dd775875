package models

import (
	"fmt"
	"strings"
	"time"
)

// UnlockMethod — способ разблокировки секции. Это тег варианта: у каждого способа
// свои ошибки, но общая проверка идемпотентности.
type UnlockMethod string

const (
	UnlockCredit         UnlockMethod = "CREDIT"
	UnlockAdReward       UnlockMethod = "AD_REWARD"
	UnlockCash           UnlockMethod = "CASH"
	UnlockSubscriberAuto UnlockMethod = "SUBSCRIBER_AUTO"
)

// ParseUnlockMethod разбирает способ разблокировки без учёта регистра.
func ParseUnlockMethod(s string) (UnlockMethod, error) {
	m := UnlockMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case UnlockCredit, UnlockAdReward, UnlockCash, UnlockSubscriberAuto:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidUnlockMethod, s)
}

// SectionUnlock — запись о разблокировке секции. Для пары (прочтение, секция) существует
// не больше одной записи; переход LOCKED → UNLOCKED необратим.
type SectionUnlock struct {
	ReadingID       string
	SectionKey      string
	UserID          string
	Method          UnlockMethod
	CreditsCharged  int64
	PaymentID       *string
	CashAmountCents int64
	CreatedAt       time.Time
}

// UnlockRequest описывает запрос на разблокировку секции.
type UnlockRequest struct {
	ReadingID  string
	SectionKey string
	UserID     string
	Method     UnlockMethod
	PaymentID  string // Только для CASH: подтверждённый платёж
	// ViewConsumed — просмотр рекламы уже засчитан вызывающей стороной в той же
	// транзакции; AD_REWARD не расходует второй.
	ViewConsumed bool
}

// UnlockResult — результат разблокировки. Повторная разблокировка возвращает
// Success=true и CreditsCharged=0.
type UnlockResult struct {
	Success         bool  `json:"success"`
	CreditsCharged  int64 `json:"credits_charged"`
	AlreadyUnlocked bool  `json:"already_unlocked"`
}

// DummyUnlock используется для приёма запроса на разблокировку секции.
type DummyUnlock struct {
	Method      string `json:"method"`
	ReadingType string `json:"reading_type,omitempty"`
	PaymentID   string `json:"payment_id,omitempty" validate:"omitempty,max=128"`
}

// UnlockedSections содержит список открытых секций прочтения.
type UnlockedSections struct {
	Sections     []string `json:"sections"`
	IsSubscriber bool     `json:"is_subscriber"`
}
