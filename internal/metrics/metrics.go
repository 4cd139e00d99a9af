package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digigo_reconciliations_total",
		Help: "Bank notification reconciliation attempts by outcome.",
	}, []string{"outcome"})

	CreditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digigo_topup_credits_total",
		Help: "Completed top-up credits by source.",
	}, []string{"source"})

	CreditedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digigo_topup_credited_amount_total",
		Help: "Sum of credited top-up amounts.",
	})

	AmountMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digigo_reconciliation_amount_mismatch_total",
		Help: "Notifications whose reported amount differed from the matched top-up.",
	})

	ExpiredSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digigo_topups_expired_swept_total",
		Help: "Pending top-ups stamped expired by the sweeper.",
	})

	PurchasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digigo_purchases_total",
		Help: "Completed purchases.",
	})

	CommissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digigo_referral_commissions_total",
		Help: "Referral earnings posted.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digigo_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "digigo_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
