package models

import "time"

// PaymentKind указывает, за что заплатил пользователь.
type PaymentKind string

const (
	PaymentSubscription  PaymentKind = "SUBSCRIPTION"
	PaymentCreditPackage PaymentKind = "CREDIT_PACKAGE"
	PaymentSectionUnlock PaymentKind = "SECTION_UNLOCK"
)

// PaymentEvent — подтверждение успешной оплаты от внешнего платёжного провайдера.
// Считается уже аутентифицированным фактом.
type PaymentEvent struct {
	PaymentID       string      `json:"payment_id" validate:"required"`
	UserID          string      `json:"user_id" validate:"required"`
	AmountCents     int64       `json:"amount" validate:"gte=0"`
	Kind            PaymentKind `json:"kind" validate:"required"`
	PackageOrPlanID string      `json:"package_or_plan_id,omitempty"`
	ReadingID       string      `json:"reading_id,omitempty"`
	SectionKey      string      `json:"section_key,omitempty"`
	PromoCode       string      `json:"promo_code,omitempty"`
}

// Payment хранит подтверждённый платёж.
type Payment struct {
	ID              string
	UserID          string
	Kind            PaymentKind
	AmountCents     int64
	PackageOrPlanID string
	ReadingID       string
	SectionKey      string
	PromoCode       string
	CreatedAt       time.Time
}

// PaymentResult содержит итог обработки события оплаты.
type PaymentResult struct {
	Applied   bool  `json:"applied"`
	Duplicate bool  `json:"duplicate"`
	Credits   int64 `json:"credits"`
}
