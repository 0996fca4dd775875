package models

import "time"

// DiscountType задаёт тип скидки промокода.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// PromoCode — промокод. Инвариант: CurrentUses <= MaxUses.
type PromoCode struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue int64 // Проценты для PERCENTAGE, копейки/центы для FIXED
	MaxUses       int
	CurrentUses   int
	ValidFrom     time.Time
	ValidUntil    time.Time
	IsActive      bool
}

// UsableAt проверяет все условия применимости кода в момент now.
func (p *PromoCode) UsableAt(now time.Time) bool {
	return p.IsActive &&
		!now.Before(p.ValidFrom) &&
		!now.After(p.ValidUntil) &&
		p.CurrentUses < p.MaxUses
}

// Discount возвращает размер скидки для суммы amountCents; итог не уходит ниже нуля.
func (p *PromoCode) Discount(amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	var d int64
	switch p.DiscountType {
	case DiscountPercentage:
		v := p.DiscountValue
		if v > 100 {
			v = 100
		}
		d = amountCents * v / 100
	case DiscountFixed:
		d = p.DiscountValue
	}
	if d < 0 {
		return 0
	}
	if d > amountCents {
		return amountCents
	}
	return d
}

// PromoValidation содержит результат проверки промокода.
type PromoValidation struct {
	Valid         bool         `json:"valid"`
	DiscountType  DiscountType `json:"discount_type,omitempty"`
	DiscountValue int64        `json:"discount_value,omitempty"`
	RemainingUses int          `json:"remaining_uses"`
}

// Quote содержит расчёт суммы к оплате с учётом промокода.
type Quote struct {
	OriginalCents int64  `json:"original_cents"`
	DiscountCents int64  `json:"discount_cents"`
	FinalCents    int64  `json:"final_cents"`
	PromoCode     string `json:"promo_code,omitempty"`
	PromoApplied  bool   `json:"promo_applied"`
}

// DummyQuote используется для приёма запроса на расчёт суммы к оплате.
type DummyQuote struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	PromoCode   string `json:"promo_code,omitempty"`
}
