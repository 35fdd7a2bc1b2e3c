package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// createTotal counts Create calls by outcome: created, reused, waited or failed.
	createTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_session_create_total",
		Help: "Total session create calls by result",
	}, []string{"result"})

	shapComputations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analyzer_shap_computations_total",
		Help: "Total SHAP computations performed by this process",
	})

	createDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analyzer_session_create_duration_seconds",
		Help:    "Session create duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
	})
)
