// Package metrics holds the Prometheus collectors for the control plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	GateEntitled  = "entitled"
	GatePaywalled = "paywalled"
	GateDiscarded = "discarded"
	CheckPaid     = "paid"
	CheckUnpaid   = "unpaid"
	CheckError    = "error"
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheBypass   = "bypass"
)

var (
	// PaywallGateTotal counts resolved gate decisions. "discarded" means the
	// session was torn down before the entitlement check returned.
	PaywallGateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxshorts_paywall_gate_total",
		Help: "Paywall gate decisions by outcome",
	}, []string{"outcome"})

	EntitlementChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxshorts_entitlement_checks_total",
		Help: "Entitlement lookups by result",
	}, []string{"result"})

	PlayerPauseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxshorts_player_pause_failures_total",
		Help: "Pause commands that failed while enforcing the paywall",
	})

	PlaybackSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fluxshorts_playback_sessions_active",
		Help: "Open playback sessions",
	})

	CatalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxshorts_catalog_cache_total",
		Help: "Movie list cache lookups by result",
	}, []string{"result"})
)

func RecordGate(outcome string) {
	PaywallGateTotal.WithLabelValues(outcome).Inc()
}

func RecordEntitlementCheck(paid bool, err error) {
	switch {
	case err != nil:
		EntitlementChecksTotal.WithLabelValues(CheckError).Inc()
	case paid:
		EntitlementChecksTotal.WithLabelValues(CheckPaid).Inc()
	default:
		EntitlementChecksTotal.WithLabelValues(CheckUnpaid).Inc()
	}
}

func RecordCache(result string) {
	CatalogCacheTotal.WithLabelValues(result).Inc()
}
