// Package create реализует HTTP-обработчик создания прочтения.
//
// Handler принимает JSON-запрос с типом прочтения, валидирует его, извлекает пользователя
// из контекста и вызывает сервис, который списывает стоимость и сохраняет прочтение.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Handler управляет HTTP-запросами на создание прочтений.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис прочтений
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики создания прочтения.
type Service interface {
	Create(ctx context.Context, userID string, in models.DummyReading) (models.ReadingView, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать прочтение
// @Description Составляет прочтение и списывает его стоимость: бесплатная попытка, лимит подписки или кредиты.
// @Tags Readings
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.DummyReading true "Тип прочтения и параметры"
// @Success 200 {object} response.Response{data=models.ReadingView}
// @Failure 400 {object} response.ErrorResponse "Неизвестный тип или недостаточно кредитов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /readings [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.readings.create"
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

	var req models.DummyReading
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

	view, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		log.Error("failed to create reading", sl.User(userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("reading created",
		sl.User(userID),
		slog.String("reading_id", view.ID),
		slog.Int64("credits_used", view.CreditsUsed))
	render.JSON(w, r, response.OKWithData(view))
}
