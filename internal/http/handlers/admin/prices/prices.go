// Package prices реализует изменение цены типа прочтения администратором.
package prices

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Handler обрабатывает изменение цен.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает изменение цены.
type Service interface {
	SetPrice(ctx context.Context, readingType string, cost int64) (*models.ReadingPrice, error)
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
// @Summary Изменить цену прочтения
// @Description Новая цена получает следующую версию; кеш цены сбрасывается.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type path string true "Тип прочтения"
// @Param request body models.DummyPrice true "Новая цена в кредитах"
// @Success 200 {object} response.Response{data=models.ReadingPrice}
// @Failure 400 {object} response.ErrorResponse "Неизвестный тип прочтения"
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/prices/{type} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.prices"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	adminID, ok := middlewarectx.UserID(r.Context())
	if !ok {
		log.Error("user id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(response.CodeUnauthorized, "unauthorized"))
		return
	}

	var req models.DummyPrice
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

	readingType := chi.URLParam(r, "type")
	price, err := h.service.SetPrice(r.Context(), readingType, *req.Cost)
	if err != nil {
		log.Error("failed to set price", slog.String("admin_id", adminID), slog.String("reading_type", readingType), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("price changed",
		slog.String("admin_id", adminID),
		slog.String("reading_type", price.ReadingType),
		slog.Int64("cost", price.Cost),
		slog.Int("version", price.Version))
	render.JSON(w, r, response.OKWithData(price))
}
