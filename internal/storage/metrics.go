package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "store",
		Name:      "query_seconds",
		Help:      "Latency of visit store queries by backend and operation.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"backend", "op", "outcome"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "store",
		Name:      "cache_lookups_total",
		Help:      "Visited-set cache lookups by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(queryLatency, cacheLookups)
}

func observeQuery(backend, op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queryLatency.WithLabelValues(backend, op, outcome).Observe(time.Since(started).Seconds())
}
