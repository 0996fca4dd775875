// Package models содержит доменные структуры сервиса доступа к прочтениям:
// пользователя, подписку, прочтения и их секции, разблокировки, рекламные
// награды, промокоды, записи леджера и аудита.
// Структуры используются в бизнес‑логике, хранилище и HTTP‑слое.
package models

import "time"

// User представляет пользователя, идентификатор которого выдаёт внешний провайдер авторизации.
//
// CreditBalance — материализованный баланс кредитов, всегда >= 0. Он меняется только
// вместе с записью в credit_ledger в одной транзакции.
type User struct {
	ID                 string     // Стабильный идентификатор от провайдера авторизации
	CreditBalance      int64      // Текущий баланс кредитов
	FreeTrialUsed      bool       // Использовано ли бесплатное прочтение
	FreeTrialUsedAt    *time.Time // Когда было использовано бесплатное прочтение
	FreeTrialReadingID *string    // Прочтение, оплаченное бесплатной пробой
	SubscriptionTier   Tier       // Кешированный уровень текущей подписки
	CreatedAt          time.Time
}

// FreeTrialPending сообщает, что проба выдана, но ещё не привязана к прочтению:
// следующее прочтение пользователя будет бесплатным.
func (u *User) FreeTrialPending() bool {
	return u.FreeTrialUsed && u.FreeTrialReadingID == nil
}
