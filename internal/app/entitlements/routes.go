package entitlements

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/admin/adjust"
	adminaudit "github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/admin/audit"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/admin/prices"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/admin/promovalidate"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/ads/claim"
	adstatus "github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/ads/status"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/checkout/quote"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/credits/balance"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/credits/history"
	freestatus "github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/freereading/status"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/freereading/use"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/health"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/payment/webhook"
	readingcreate "github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/readings/create"
	readingread "github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/readings/read"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/subscription/cancel"
	subread "github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/unlock/sections"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/handlers/unlock/unlock"
	"github.com/magabrotheeeer/reading-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/jwt"
)

// Deps содержит зависимости маршрутов.
type Deps struct {
	Services *Services
	Tokens   middlewarectx.TokenParser
	Webhook  string // Секрет подписи вебхука оплаты
	RateRPS  float64
	Burst    int
	DB       health.Pinger
	Cache    health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	s := d.Services
	limiter := middlewarectx.NewRateLimiter(d.RateRPS, d.Burst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New(logger, map[string]health.Pinger{
			"postgres": d.DB,
			"redis":    d.Cache,
		}).ServeHTTP)

		// Вебхук подписан HMAC и не требует JWT.
		r.Post("/payments/webhook", webhook.New(logger, s.Payment, d.Webhook).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))
			r.Use(limiter.Middleware(logger))

			r.Post("/readings", readingcreate.New(logger, s.Readings).ServeHTTP)
			r.Get("/readings/{id}", readingread.New(logger, s.Readings).ServeHTTP)
			r.Post("/readings/{id}/sections/{key}/unlock", unlock.New(logger, s.Unlock).ServeHTTP)
			r.Get("/readings/{id}/unlocked-sections", sections.New(logger, s.Unlock).ServeHTTP)

			r.Get("/ads/status", adstatus.New(logger, s.AdReward).ServeHTTP)
			r.Post("/ads/claim", claim.New(logger, s.AdReward).ServeHTTP)

			r.Get("/free-reading", freestatus.New(logger, s.Entitlement).ServeHTTP)
			r.Post("/free-reading/use", use.New(logger, s.Entitlement).ServeHTTP)

			r.Get("/credits/balance", balance.New(logger, s.Ledger).ServeHTTP)
			r.Get("/credits/history", history.New(logger, s.Ledger).ServeHTTP)

			r.Get("/subscription", subread.New(logger, s.Subscription).ServeHTTP)
			r.Post("/subscription/cancel", cancel.New(logger, s.Subscription).ServeHTTP)

			r.Post("/checkout/quote", quote.New(logger, s.Promo).ServeHTTP)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(jwt.RoleAdmin, logger))
				r.Get("/promo-codes/validate/{code}", promovalidate.New(logger, s.Promo).ServeHTTP)
				r.Post("/credits/adjust", adjust.New(logger, s.Ledger).ServeHTTP)
				r.Get("/audit", adminaudit.New(logger, s.Audit).ServeHTTP)
				r.Put("/prices/{type}", prices.New(logger, s.Pricing).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
