package entitlements

import (
	"log/slog"

	"github.com/magabrotheeeer/reading-entitlements/internal/cache"
	"github.com/magabrotheeeer/reading-entitlements/internal/config"
	"github.com/magabrotheeeer/reading-entitlements/internal/engineclient"
	"github.com/magabrotheeeer/reading-entitlements/internal/lib/ratelimit"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/adreward"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/audit"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/entitlement"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/ledger"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/payment"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/pricing"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/promo"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/readings"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/subscription"
	"github.com/magabrotheeeer/reading-entitlements/internal/services/unlock"
	"github.com/magabrotheeeer/reading-entitlements/internal/storage"
)

// Services содержит собранный граф сервисов доступа.
type Services struct {
	Audit        *audit.AuditService
	Ledger       *ledger.LedgerService
	Pricing      *pricing.PricingService
	Entitlement  *entitlement.EntitlementService
	Unlock       *unlock.UnlockService
	AdReward     *adreward.AdRewardService
	Promo        *promo.PromoService
	Subscription *subscription.SubscriptionService
	Readings     *readings.ReadingsService
	Payment      *payment.PaymentService
}

// BuildServices связывает сервисы с хранилищем, кешем и конфигом.
func BuildServices(cfg *config.Config, db *storage.Storage, rdb *cache.Cache, log *slog.Logger) *Services {
	ent := cfg.Entitlements

	auditService := audit.New(db, log)
	ledgerService := ledger.New(db, auditService, log)
	pricingService := pricing.New(db, rdb, ent.PricingCacheTTL, log)
	entitlementService := entitlement.New(db, pricingService, ledgerService, auditService, cfg.TierPolicies(), log)

	counter := adreward.NewCounter(db, ent.AdMaxDailyViews)
	unlockService := unlock.New(db, entitlementService, ledgerService, counter, auditService, ent.SectionUnlockCost, log)

	adRewardService := adreward.New(db, counter, ledgerService, unlockService, auditService,
		ratelimit.New(rdb.Db, "ratelimit:"),
		adreward.Options{CreditsPerView: ent.AdCreditsPerView, MinInterval: ent.AdClaimMinInterval},
		log)

	promoService := promo.New(db, log)
	subscriptionService := subscription.New(db, ledgerService, auditService, log)

	engine := engineclient.NewClient(cfg.ContentEngine.URL, cfg.ContentEngine.APIKey, cfg.ContentEngine.Timeout)
	readingsService := readings.New(db, engine, entitlementService, unlockService, auditService, log)

	paymentService := payment.New(db, subscriptionService, ledgerService, unlockService, promoService, auditService, log)

	return &Services{
		Audit:        auditService,
		Ledger:       ledgerService,
		Pricing:      pricingService,
		Entitlement:  entitlementService,
		Unlock:       unlockService,
		AdReward:     adRewardService,
		Promo:        promoService,
		Subscription: subscriptionService,
		Readings:     readingsService,
		Payment:      paymentService,
	}
}
