package models

import "time"

// Действия, попадающие в журнал аудита.
const (
	ActionCreditDebit          = "credit.debit"
	ActionCreditCredit         = "credit.credit"
	ActionCreditAdjust         = "credit.adjust"
	ActionSectionUnlock        = "section.unlock"
	ActionSectionUnlockCash    = "section.unlock.cash"
	ActionAdClaim              = "ad.claim"
	ActionFreeTrialGrant       = "free_trial.grant"
	ActionReadingCharge        = "reading.charge"
	ActionPromoRedeem          = "promo.redeem"
	ActionSubscriptionActivate = "subscription.activate"
	ActionSubscriptionCancel   = "subscription.cancel"
	ActionSubscriptionExpire   = "subscription.expire"
	ActionPaymentApply         = "payment.apply"
)

// AuditEntry — запись журнала аудита. Только добавление, без изменения и удаления.
type AuditEntry struct {
	ID        int64     `json:"id"`
	ActorID   string    `json:"actorId"`
	Action    string    `json:"action"`
	TargetID  string    `json:"targetId"`
	Delta     int64     `json:"delta"`
	Reason    Reason    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboxMessage хранит событие аудита, ожидающее публикации во внешний брокер.
type OutboxMessage struct {
	ID           int64
	AuditEntryID int64
	RoutingKey   string
	Payload      []byte
	Attempts     int
}
