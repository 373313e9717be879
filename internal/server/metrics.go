package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var (
	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "api",
		Name:      "request_seconds",
		Help:      "Latency of API requests by method, path, and status.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"method", "path", "status"})

	httpTracer = otel.Tracer("github.com/example/visited-atlas/server")
)

func init() {
	prometheus.MustRegister(requestLatency)
}

func observeRequest(method, path string, status int, elapsed time.Duration) {
	requestLatency.WithLabelValues(method, path, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
