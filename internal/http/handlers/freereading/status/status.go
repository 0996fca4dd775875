// Package status сообщает, доступно ли пользователю бесплатное прочтение.
package status

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

// Handler обрабатывает запросы доступности бесплатного прочтения.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает проверку бесплатного прочтения.
type Service interface {
	FreeTrialAvailable(ctx context.Context, userID string) (bool, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Доступность бесплатного прочтения
// @Tags FreeReading
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /free-reading [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.freereading.status"
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

	available, err := h.service.FreeTrialAvailable(r.Context(), userID)
	if err != nil {
		log.Error("failed to check free reading", sl.User(userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"available": available,
	}))
}
