// Package read реализует HTTP-обработчик получения прочтения по ID.
//
// Превью секций возвращаются всегда, полный текст только для открытых секций.
package read

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

// Handler обрабатывает запросы на получение прочтения.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения прочтения.
type Service interface {
	Get(ctx context.Context, userID, readingID string) (models.ReadingView, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить прочтение
// @Tags Readings
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID прочтения"
// @Success 200 {object} response.Response{data=models.ReadingView}
// @Failure 403 {object} response.ErrorResponse "Прочтение другого пользователя"
// @Failure 404 {object} response.ErrorResponse "Прочтение не найдено"
// @Router /readings/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.readings.read"
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

	view, err := h.service.Get(r.Context(), userID, readingID)
	if err != nil {
		log.Error("failed to read reading", sl.User(userID), slog.String("reading_id", readingID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(view))
}
