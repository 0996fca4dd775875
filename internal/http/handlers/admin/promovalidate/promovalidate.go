// Package promovalidate проверяет промокод без его погашения.
package promovalidate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Handler обрабатывает проверку промокода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает проверку промокода.
type Service interface {
	Validate(ctx context.Context, code string) (models.PromoValidation, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Проверить промокод
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param code path string true "Промокод"
// @Success 200 {object} response.Response{data=models.PromoValidation}
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Router /admin/promo-codes/validate/{code} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.promovalidate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	code := chi.URLParam(r, "code")
	res, err := h.service.Validate(r.Context(), code)
	if err != nil {
		log.Error("failed to validate promo code", slog.String("code", code), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(res))
}
