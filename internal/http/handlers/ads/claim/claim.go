// Package claim реализует HTTP-обработчик получения награды за просмотр рекламы.
//
// Награда бывает трёх видов: кредиты, открытие секции прочтения и дневной гороскоп.
// Для открытия секции нужны reading_id и section_key.
package claim

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

// Handler обрабатывает заявки на рекламную награду.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает выдачу рекламных наград.
type Service interface {
	Claim(ctx context.Context, userID, rewardType string, cc models.ClaimContext) (models.ClaimResult, error)
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
// @Summary Получить награду за рекламу
// @Tags Ads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyClaim true "Тип награды и контекст"
// @Success 200 {object} response.Response{data=models.ClaimResult}
// @Failure 400 {object} response.ErrorResponse "Неверный тип, нет контекста или исчерпан дневной лимит"
// @Failure 429 {object} response.ErrorResponse "Слишком частые заявки"
// @Router /ads/claim [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ads.claim"
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

	var req models.DummyClaim
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

	res, err := h.service.Claim(r.Context(), userID, req.RewardType, models.ClaimContext{
		ReadingID:     req.ReadingID,
		SectionKey:    req.SectionKey,
		AdPlacementID: req.AdPlacementID,
	})
	if err != nil {
		log.Warn("ad claim rejected", sl.User(userID), slog.String("reward_type", req.RewardType), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(res))
}
