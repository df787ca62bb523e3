package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashback_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cashback_http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// outcome: accepted | duplicate | error
	ReferralClicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashback_referral_clicks_total",
			Help: "Referral clicks by dedup outcome",
		},
		[]string{"outcome"},
	)

	// status: the HTTP status returned to the advertiser
	PostbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashback_postbacks_total",
			Help: "Advertiser postbacks by response status",
		},
		[]string{"status"},
	)

	// outcome: valid | invalid | error | quota_exhausted | cache_hit
	PhoneValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashback_phone_validations_total",
			Help: "Phone validation attempts per provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// result: verified | rejected | still_pending | superseded | skipped
	PendingVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashback_pending_verifications_processed_total",
			Help: "Pending mobile verifications handled by the batch job",
		},
		[]string{"result"},
	)

	// outcome: redirected | rejected
	OfferGrabsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashback_offer_grabs_total",
			Help: "Grab offer submissions by outcome",
		},
		[]string{"outcome"},
	)
)
