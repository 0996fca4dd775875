// Package sections отдаёт список открытых секций прочтения.
package sections

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Handler обрабатывает запросы списка открытых секций.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс чтения открытых секций.
type Service interface {
	UnlockedSections(ctx context.Context, readingID, userID string) (models.UnlockedSections, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Открытые секции прочтения
// @Description Для подписчика с полным доступом возвращает все секции и is_subscriber=true.
// @Tags Unlocks
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID прочтения"
// @Success 200 {object} response.Response{data=models.UnlockedSections}
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /readings/{id}/unlocked-sections [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.unlock.sections"
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
	readingID := chi.URLParam(r, "id")

	res, err := h.service.UnlockedSections(r.Context(), readingID, userID)
	if err != nil {
		log.Error("failed to list unlocked sections", sl.User(userID), slog.String("reading_id", readingID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(res))
}
