// Package metrics содержит счётчики Prometheus сервиса доступа.
// Они отдаются на /metrics стандартным promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Unlocks считает разблокировки секций по способу и исходу.
	Unlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "section_unlocks_total",
		Help:      "Section unlock attempts by method and result.",
	}, []string{"method", "result"})

	// AdClaims считает заявки на рекламную награду по типу и исходу.
	AdClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "ad_claims_total",
		Help:      "Rewarded ad claims by reward type and result.",
	}, []string{"reward_type", "result"})

	// LedgerMutations считает изменения баланса по причине.
	LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "ledger_mutations_total",
		Help:      "Credit ledger mutations by reason.",
	}, []string{"reason"})

	// PromoRedemptions считает погашения промокодов по исходу.
	PromoRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "promo_redemptions_total",
		Help:      "Promo code redemptions by result.",
	}, []string{"result"})

	// AuditPublished считает события аудита, отправленные в брокер, по исходу.
	AuditPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitlements",
		Name:      "audit_events_published_total",
		Help:      "Audit outbox events published to the broker by result.",
	}, []string{"result"})
)

// Result переводит ошибку операции в метку исхода.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
