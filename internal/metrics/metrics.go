// Package metrics holds the Prometheus collectors for the claim engine.
// They register on the default registry and are served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estate_offers_placed_total",
		Help: "Offers recorded against items.",
	})
	OffersIncreased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estate_offers_increased_total",
		Help: "Offer amounts raised by their owner.",
	})
	OffersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estate_offers_accepted_total",
		Help: "Offers accepted by sellers (items claimed).",
	})
	AcceptConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estate_accept_conflicts_total",
		Help: "Accept attempts that lost the claim race.",
	})
	OffersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estate_offers_expired_total",
		Help: "Active offers expired by the stale-offer sweep.",
	})
	AuthCodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estate_auth_codes_issued_total",
		Help: "One-time buyer codes issued.",
	})
	AuthVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_auth_verifications_total",
		Help: "Buyer code verifications by result.",
	}, []string{"result"})
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_notification_failures_total",
		Help: "Best-effort notifications or deliveries that failed.",
	}, []string{"kind"})
)
