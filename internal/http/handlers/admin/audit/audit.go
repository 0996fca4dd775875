// Package audit отдаёт журнал аудита администратору.
package audit

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/credits/history"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Handler обрабатывает чтение журнала аудита.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение журнала аудита.
type Service interface {
	List(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Журнал аудита
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param actor_id query string false "Фильтр по инициатору"
// @Param limit query int false "Количество записей"
// @Success 200 {object} response.Response{data=[]models.AuditEntry}
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Router /admin/audit [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.audit"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, err := history.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		log.Error("failed to parse limit", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeBadRequest, "invalid limit"))
		return
	}
	actorID := r.URL.Query().Get("actor_id")

	entries, err := h.service.List(r.Context(), actorID, limit)
	if err != nil {
		log.Error("failed to list audit entries", slog.String("actor_id", actorID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"entries": entries,
	}))
}
