package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier — уровень подписки. Уровни упорядочены: FREE < BASIC < PRO < MASTER.
type Tier string

const (
	TierFree   Tier = "FREE"
	TierBasic  Tier = "BASIC"
	TierPro    Tier = "PRO"
	TierMaster Tier = "MASTER"
)

var tierRank = map[Tier]int{
	TierFree:   0,
	TierBasic:  1,
	TierPro:    2,
	TierMaster: 3,
}

// Rank возвращает порядковый номер уровня; неизвестный уровень считается FREE.
func (t Tier) Rank() int {
	return tierRank[t]
}

// AtLeast сообщает, что уровень t не ниже other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

// ParseTier разбирает строковое представление уровня без учёта регистра.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := tierRank[t]; !ok {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// SubscriptionStatus задаёт состояние жизненного цикла подписки.
type SubscriptionStatus string

const (
	SubscriptionActive          SubscriptionStatus = "ACTIVE"
	SubscriptionCanceledPending SubscriptionStatus = "CANCELED_PENDING"
	SubscriptionExpired         SubscriptionStatus = "EXPIRED"
)

// Subscription принадлежит ровно одному пользователю. У пользователя не больше одной
// «живой» (не EXPIRED) подписки одновременно.
type Subscription struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id"`
	PlanID           string             `json:"plan_id"`
	Tier             Tier               `json:"tier"`
	Status           SubscriptionStatus `json:"status"`
	PeriodStart      time.Time          `json:"period_start"`
	PeriodEnd        time.Time          `json:"period_end"`
	CreditsPerPeriod int64              `json:"credits_per_period"` // Кредиты, начисляемые за каждый оплаченный период
	ReadingsUsed     int                `json:"readings_used"`      // Прочтения, списанные с лимита текущего периода
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// IsEntitled сообщает, даёт ли подписка доступ в момент now.
// Отменённая подписка остаётся действующей до конца оплаченного периода.
func (s *Subscription) IsEntitled(now time.Time) bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case SubscriptionActive, SubscriptionCanceledPending:
		return now.Before(s.PeriodEnd)
	default:
		return false
	}
}

// Plan — тарифный план из каталога, на который ссылается событие оплаты подписки.
type Plan struct {
	ID               string
	Tier             Tier
	PeriodDays       int
	CreditsPerPeriod int64
	PriceCents       int64
}

// CreditPackage описывает пакет кредитов из каталога.
type CreditPackage struct {
	ID         string
	Credits    int64
	PriceCents int64
}

// TierPolicy описывает, что даёт уровень подписки.
// ReadingsPerPeriod < 0 означает безлимит.
type TierPolicy struct {
	FullSectionAccess bool
	ReadingsPerPeriod int
}

// Unlimited сообщает, что прочтения по уровню не ограничены.
func (p TierPolicy) Unlimited() bool {
	return p.ReadingsPerPeriod < 0
}
