// Package balance отдаёт текущий баланс кредитов пользователя.
package balance

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
)

// Handler обрабатывает запросы баланса.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение баланса.
type Service interface {
	Balance(ctx context.Context, userID string) (int64, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Баланс кредитов
// @Tags Credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /credits/balance [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.balance"
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

	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		log.Error("failed to get balance", sl.User(userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"balance": balance,
	}))
}
