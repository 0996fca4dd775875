// Package health отдаёт состояние сервиса и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/response"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/sl"
)

// Pinger проверяет доступность зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler отвечает на проверки живости.
type Handler struct {
	log     *slog.Logger
	checks  map[string]Pinger
	timeout time.Duration
}

// New создаёт Handler. checks — именованные зависимости, например postgres и redis.
func New(log *slog.Logger, checks map[string]Pinger) *Handler {
	return &Handler{
		log:     log,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// ServeHTTP godoc
// @Summary Проверка состояния
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.ErrorResponse
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	healthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.log.Error("dependency is down", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			deps[name] = "down"
			healthy = false
			continue
		}
		deps[name] = "up"
	}

	if !healthy {
		render.Status(r, http.StatusServiceUnavailable)
		resp := response.Error("UNAVAILABLE", "dependency is down")
		resp.Data = map[string]any{"dependencies": deps}
		render.JSON(w, r, resp)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status":       "ok",
		"dependencies": deps,
	}))
}
