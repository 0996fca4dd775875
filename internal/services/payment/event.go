package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// ErrInvalidEvent возвращается, если событие оплаты не проходит проверку полей.
var ErrInvalidEvent = errors.New("invalid payment event")

var validate = validator.New()

func validateEvent(ev models.PaymentEvent) error {
	if err := validate.Struct(ev); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, err.Error())
	}
	switch ev.Kind {
	case models.PaymentSubscription, models.PaymentCreditPackage:
		if ev.PackageOrPlanID == "" {
			return fmt.Errorf("%w: package_or_plan_id is required for %s", ErrInvalidEvent, ev.Kind)
		}
	case models.PaymentSectionUnlock:
		if ev.ReadingID == "" || ev.SectionKey == "" {
			return fmt.Errorf("%w: reading_id and section_key are required for %s", ErrInvalidEvent, ev.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown payment kind %q", ErrInvalidEvent, ev.Kind)
	}
	return nil
}

// Sign возвращает подпись тела в hex: HMAC‑SHA256 с секретом вебхука.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись за постоянное время. Пустой секрет
// отклоняет любые запросы.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}

// permanent сообщает, что повторная доставка события даст ту же ошибку.
func permanent(err error) bool {
	for _, target := range []error{
		ErrInvalidEvent,
		models.ErrNotFound,
		models.ErrForbidden,
		models.ErrInvalidSectionKey,
		models.ErrNotInterpretable,
		models.ErrPaymentNotConfirmed,
		models.ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HandleMessage — обработчик очереди payments.succeeded. Некорректные и
// неприменимые события отбрасываются, временные ошибки возвращают сообщение в очередь.
func (s *PaymentService) HandleMessage(ctx context.Context, body []byte) error {
	var ev models.PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: decode payment event: %w", rabbitmq.ErrDrop, err)
	}
	if _, err := s.Apply(ctx, ev); err != nil {
		if permanent(err) {
			return fmt.Errorf("%w: %w", rabbitmq.ErrDrop, err)
		}
		return err
	}
	return nil
}
