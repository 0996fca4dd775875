package models

import "time"

// Reason задаёт код причины изменения баланса.
type Reason string

const (
	ReasonSectionUnlock     Reason = "SECTION_UNLOCK"
	ReasonAdReward          Reason = "AD_REWARD"
	ReasonAdminAdjustment   Reason = "ADMIN_ADJUSTMENT"
	ReasonSubscriptionGrant Reason = "SUBSCRIPTION_GRANT"
	ReasonPurchase          Reason = "PURCHASE"
	ReasonReadingPurchase   Reason = "READING_PURCHASE"
	ReasonFreeTrial         Reason = "FREE_TRIAL"
)

// LedgerEntry — неизменяемая строка леджера кредитов. Delta со знаком.
type LedgerEntry struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	Delta        int64     `json:"delta"`
	Reason       Reason    `json:"reason"`
	Reference    string    `json:"reference,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// DummyAdjustment используется для приёма запроса на ручную корректировку баланса.
type DummyAdjustment struct {
	UserID string `json:"user_id" validate:"required"`
	Delta  int64  `json:"delta" validate:"required"`
	Note   string `json:"note,omitempty"`
}
