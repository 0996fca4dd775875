// Package cancel отменяет подписку пользователя в конце оплаченного периода.
package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Handler обрабатывает отмену подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает отмену подписки.
type Service interface {
	Cancel(ctx context.Context, userID string) (*models.Subscription, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отменить подписку
// @Description Подписка остаётся действующей до конца оплаченного периода.
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Subscription}
// @Failure 404 {object} response.ErrorResponse "Подписки нет"
// @Router /subscription/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserID(r.Context())
	if !ok {
		log.Error("user id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(response.CodeUnauthorized, "unauthorized"))
		return
	}

	sub, err := h.service.Cancel(r.Context(), userID)
	if err != nil {
		log.Error("failed to cancel subscription", sl.User(userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	log.Info("subscription canceled", sl.User(userID), slog.Time("period_end", sub.PeriodEnd))
	render.JSON(w, r, response.OKWithData(sub))
}
