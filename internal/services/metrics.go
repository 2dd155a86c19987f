package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// statusLookups counts status cache lookups by outcome: hit, miss, fallback.
	statusLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_status_lookups_total",
			Help: "Account status lookups by cache outcome.",
		},
		[]string{"result"},
	)

	// admissionDecisions counts admission verdicts per channel class.
	admissionDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_admission_decisions_total",
			Help: "Campaign admission decisions.",
		},
		[]string{"channel_class", "outcome"},
	)

	cacheClears = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pacer_cache_clears_total",
			Help: "Explicit status cache clears.",
		},
	)
)

func init() {
	prometheus.MustRegister(statusLookups, admissionDecisions, cacheClears)
}
