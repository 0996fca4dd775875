// Package quote считает итоговую сумму оплаты с учётом промокода.
package quote

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Handler обрабатывает расчёт суммы.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает расчёт суммы с промокодом.
type Service interface {
	Quote(ctx context.Context, amountCents int64, code string) (models.Quote, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Рассчитать сумму с промокодом
// @Description Недействующий или неизвестный промокод не даёт скидки и не считается ошибкой.
// @Tags Checkout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyQuote true "Сумма и промокод"
// @Success 200 {object} response.Response{data=models.Quote}
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /checkout/quote [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.quote"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyQuote
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	q, err := h.service.Quote(r.Context(), req.AmountCents, req.PromoCode)
	if err != nil {
		log.Error("failed to quote", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(q))
}
