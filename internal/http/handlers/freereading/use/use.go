// Package use списывает бесплатное прочтение пользователя.
//
// Успешным бывает ровно один вызов за всё время; повторные возвращают success=false.
package use

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

// Handler обрабатывает списание бесплатного прочтения.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает списание бесплатного прочтения.
type Service interface {
	ConsumeFreeTrial(ctx context.Context, userID string) (bool, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Использовать бесплатное прочтение
// @Tags FreeReading
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /free-reading/use [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.freereading.use"
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

	granted, err := h.service.ConsumeFreeTrial(r.Context(), userID)
	if err != nil {
		log.Error("failed to consume free reading", sl.User(userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"success": granted,
	}))
}
