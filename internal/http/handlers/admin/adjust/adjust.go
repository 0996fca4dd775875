// Package adjust реализует ручную корректировку баланса администратором.
package adjust

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

// Handler обрабатывает корректировки баланса.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает корректировку баланса.
type Service interface {
	Adjust(ctx context.Context, adminID, userID string, delta int64, note string) (int64, error)
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
// @Summary Скорректировать баланс
// @Description Отрицательная корректировка не может увести баланс ниже нуля.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyAdjustment true "Пользователь, изменение и комментарий"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Недостаточно кредитов"
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/credits/adjust [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.adjust"
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

	var req models.DummyAdjustment
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

	balance, err := h.service.Adjust(r.Context(), adminID, req.UserID, req.Delta, req.Note)
	if err != nil {
		log.Error("failed to adjust balance", slog.String("admin_id", adminID), sl.User(req.UserID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("balance adjusted",
		slog.String("admin_id", adminID),
		sl.User(req.UserID),
		slog.Int64("delta", req.Delta),
		slog.Int64("balance", balance))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_id": req.UserID,
		"balance": balance,
	}))
}
