// Package metrics holds the Prometheus collectors exported on the service API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AccessCodesAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotation_access_codes_allocated_total",
		Help: "Access codes assigned to quotations",
	})

	AccessCodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotation_access_code_collisions_total",
		Help: "Access code writes rejected by the unique index",
	})

	AllocationExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unique_allocation_exhausted_total",
		Help: "Bounded unique-value allocations that ran out of attempts",
	}, []string{"kind"})

	QuotationShares = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotation_shares_total",
		Help: "Share requests served for quotations",
	})

	AccessVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotation_access_verifications_total",
		Help: "Public quotation access checks by method and result",
	}, []string{"method", "result"})

	TourListCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tour_list_cache_requests_total",
		Help: "Tour list cache lookups by result",
	}, []string{"result"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	}, []string{"route"})

	IdempotencyReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_idempotency_replays_total",
		Help: "Responses replayed for a repeated Idempotency-Key",
	})
)
