package models

import "time"

// Reading — неизменяемое прочтение, рассчитанное внешним движком и принадлежащее пользователю.
// Единица разблокировки — секция, а не всё прочтение.
type Reading struct {
	ID            string
	UserID        string
	ReadingType   string
	Interpretable bool // Есть ли у прочтения текст интерпретации (а не только карта)
	CreditsUsed   int64
	ChargeSource  ChargeSource
	Sections      map[string]Section
	CreatedAt     time.Time
}

// HasSection сообщает, объявлена ли секция в прочтении.
func (r *Reading) HasSection(key string) bool {
	_, ok := r.Sections[key]
	return ok
}

// Section описывает именованную часть прочтения: превью видно всегда, полный текст закрыт.
type Section struct {
	Preview string `json:"preview"`
	Full    string `json:"full,omitempty"`
}

// ReadingContent содержит результат работы внешнего движка расчёта.
type ReadingContent struct {
	Interpretable bool               `json:"interpretable"`
	Sections      map[string]Section `json:"sections"`
}

// ChargeSource указывает, откуда оплачено прочтение.
type ChargeSource string

const (
	ChargeFreeTrial    ChargeSource = "FREE_TRIAL"
	ChargeSubscription ChargeSource = "SUBSCRIPTION"
	ChargeCredits      ChargeSource = "CREDITS"
)

// ReadingCharge содержит итог списания за прочтение.
type ReadingCharge struct {
	Credits int64
	Source  ChargeSource
}

// ReadingPrice — версионированная запись конфигурации цены прочтения.
type ReadingPrice struct {
	ReadingType string    `json:"reading_type"`
	Cost        int64     `json:"cost"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DummyPrice используется для приёма запроса на изменение цены прочтения.
type DummyPrice struct {
	Cost *int64 `json:"cost" validate:"required,gte=0"`
}

// DummyReading используется для приёма запроса на создание прочтения.
type DummyReading struct {
	ReadingType    string         `json:"reading_type" validate:"required"`
	UseFreeReading bool           `json:"use_free_reading"`
	Params         map[string]any `json:"params,omitempty"`
}

// SectionView описывает секцию в ответе клиенту.
type SectionView struct {
	Key      string `json:"key"`
	Preview  string `json:"preview"`
	Full     string `json:"full,omitempty"`
	Unlocked bool   `json:"unlocked"`
}

// ReadingView описывает прочтение в ответе клиенту с учётом открытых секций.
type ReadingView struct {
	ID           string        `json:"id"`
	ReadingType  string        `json:"reading_type"`
	CreditsUsed  int64         `json:"credits_used"`
	ChargeSource ChargeSource  `json:"charge_source,omitempty"`
	IsSubscriber bool          `json:"is_subscriber"`
	Sections     []SectionView `json:"sections"`
	CreatedAt    time.Time     `json:"created_at"`
}
