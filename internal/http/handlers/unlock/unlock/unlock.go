// Package unlock реализует HTTP-обработчик разблокировки секции прочтения.
//
// Способ оплаты задаётся в теле запроса: кредиты, просмотр рекламы, подтверждённый
// платёж или доступ подписчика. Повторный запрос не списывает ничего.
package unlock

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

// Handler обрабатывает запросы на разблокировку секций.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает движок разблокировки.
type Service interface {
	Unlock(ctx context.Context, req models.UnlockRequest) (models.UnlockResult, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Result описывает тело успешного ответа.
type Result struct {
	Success         bool   `json:"success"`
	SectionKey      string `json:"section_key"`
	CreditsUsed     int64  `json:"credits_used"`
	AlreadyUnlocked bool   `json:"already_unlocked"`
}

// ServeHTTP godoc
// @Summary Разблокировать секцию
// @Description Открывает секцию прочтения выбранным способом: CREDIT, AD_REWARD, CASH или SUBSCRIBER_AUTO.
// @Tags Unlocks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID прочтения"
// @Param key path string true "Ключ секции"
// @Param request body models.DummyUnlock true "Способ разблокировки"
// @Success 200 {object} response.Response{data=Result}
// @Failure 400 {object} response.ErrorResponse "Неверная секция, недостаточно кредитов, исчерпан лимит рекламы"
// @Failure 403 {object} response.ErrorResponse "Чужое прочтение или нет подписки"
// @Failure 404 {object} response.ErrorResponse "Прочтение не найдено"
// @Router /readings/{id}/sections/{key}/unlock [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.unlock"
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

	var req models.DummyUnlock
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

	readingID := chi.URLParam(r, "id")
	sectionKey := chi.URLParam(r, "key")
	log = log.With(sl.User(userID), slog.String("reading_id", readingID), slog.String("section_key", sectionKey))

	res, err := h.service.Unlock(r.Context(), models.UnlockRequest{
		ReadingID:  readingID,
		SectionKey: sectionKey,
		UserID:     userID,
		Method:     models.UnlockMethod(req.Method),
		PaymentID:  req.PaymentID,
	})
	if err != nil {
		log.Warn("unlock rejected", slog.String("method", req.Method), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("section unlocked", slog.String("method", req.Method), slog.Int64("credits_used", res.CreditsCharged))
	render.JSON(w, r, response.OKWithData(Result{
		Success:         res.Success,
		SectionKey:      sectionKey,
		CreditsUsed:     res.CreditsCharged,
		AlreadyUnlocked: res.AlreadyUnlocked,
	}))
}
