package models

import (
	"strings"
	"time"
)

// RewardType задаёт тип награды за просмотр рекламы.
type RewardType string

const (
	RewardCredit         RewardType = "CREDIT"
	RewardSectionUnlock  RewardType = "SECTION_UNLOCK"
	RewardDailyHoroscope RewardType = "DAILY_HOROSCOPE"
)

// ParseRewardType разбирает тип награды; для неизвестного типа возвращает ErrInvalidRewardType.
func ParseRewardType(s string) (RewardType, error) {
	rt := RewardType(strings.ToUpper(strings.TrimSpace(s)))
	switch rt {
	case RewardCredit, RewardSectionUnlock, RewardDailyHoroscope:
		return rt, nil
	}
	return "", ErrInvalidRewardType
}

// ClaimContext описывает контекст заявки на награду.
type ClaimContext struct {
	AdPlacementID string
	ReadingID     string
	SectionKey    string
}

// AdStatus — состояние дневного лимита просмотров в текущих UTC‑сутках.
type AdStatus struct {
	RemainingDailyViews int `json:"remaining_daily_views"`
	MaxDailyViews       int `json:"max_daily_views"`
	ViewsUsedToday      int `json:"views_used_today"`
}

// AdClaim хранит запись журнала заявок на награду.
type AdClaim struct {
	ID             int64
	UserID         string
	Day            time.Time
	RewardType     RewardType
	ReadingID      string
	SectionKey     string
	AdPlacementID  string
	CreditsGranted int64
	CreatedAt      time.Time
}

// ClaimResult описывает ответ на заявку на награду.
type ClaimResult struct {
	Success             bool  `json:"success"`
	CreditsGranted      int64 `json:"credits_granted"`
	RemainingDailyViews int   `json:"remaining_daily_views"`
}

// DummyClaim используется для приёма запроса на получение награды.
type DummyClaim struct {
	RewardType    string `json:"reward_type"`
	AdPlacementID string `json:"ad_placement_id,omitempty" validate:"omitempty,max=128"`
	ReadingID     string `json:"reading_id,omitempty"`
	SectionKey    string `json:"section_key,omitempty"`
}
