// Package webhook принимает подтверждения оплаты от платёжного шлюза.
//
// Тело подписывается HMAC-SHA256 общим секретом, подпись в hex передаётся
// в заголовке X-Api-Signature. Повторная доставка того же payment_id ничего не меняет.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/payment"
)

// SignatureHeader содержит подпись тела запроса.
const SignatureHeader = "X-Api-Signature"

const maxBodySize = 1 << 20

// Service применяет событие оплаты.
type Service interface {
	Apply(ctx context.Context, ev models.PaymentEvent) (models.PaymentResult, error)
}

// Handler обрабатывает вебхук платёжного шлюза.
type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создаёт Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// ServeHTTP godoc
// @Summary Вебхук подтверждения оплаты
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Api-Signature header string true "HMAC-SHA256 тела в hex"
// @Param request body models.PaymentEvent true "Событие оплаты"
// @Success 200 {object} response.Response{data=models.PaymentResult}
// @Failure 400 {object} response.ErrorResponse "Некорректное событие"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeBadRequest, "invalid request body"))
		return
	}
	defer r.Body.Close()

	if !payment.VerifySignature(h.webhookSecret, body, r.Header.Get(SignatureHeader)) {
		log.Warn("invalid or missing webhook signature")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(response.CodeUnauthorized, "invalid signature"))
		return
	}

	var ev models.PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeBadRequest, "invalid request body"))
		return
	}
	log = log.With(slog.String("payment_id", ev.PaymentID), sl.User(ev.UserID), slog.String("kind", string(ev.Kind)))

	res, err := h.service.Apply(r.Context(), ev)
	if err != nil {
		log.Error("failed to apply payment", sl.Err(err))
		if errors.Is(err, payment.ErrInvalidEvent) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.CodeBadRequest, err.Error()))
			return
		}
		response.RenderError(w, r, err)
		return
	}

	log.Info("webhook processed", slog.Bool("duplicate", res.Duplicate), slog.Int64("credits", res.Credits))
	render.JSON(w, r, response.OKWithData(res))
}
