// Package history отдаёт последние записи журнала кредитов пользователя.
package history

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler обрабатывает запросы истории кредитов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение журнала кредитов.
type Service interface {
	History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary История кредитов
// @Tags Credits
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Количество записей, по умолчанию 50, не больше 200"
// @Success 200 {object} response.Response{data=[]models.LedgerEntry}
// @Failure 400 {object} response.ErrorResponse
// @Router /credits/history [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.history"
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

	limit, err := ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		log.Error("failed to parse limit", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeBadRequest, "invalid limit"))
		return
	}

	entries, err := h.service.History(r.Context(), userID, limit)
	if err != nil {
		log.Error("failed to list ledger entries", sl.User(userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"entries": entries,
	}))
}

// ParseLimit разбирает параметр limit: пустое значение даёт значение по умолчанию,
// слишком большое обрезается.
func ParseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
