package syncapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var (
	callLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "syncapi",
		Name:      "call_seconds",
		Help:      "Latency of protocol calls against the authoritative store.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"op", "outcome"})

	apiTracer = otel.Tracer("github.com/example/visited-atlas/syncapi")
)

func init() {
	prometheus.MustRegister(callLatency)
}

func observeCall(op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	callLatency.WithLabelValues(op, outcome).Observe(time.Since(started).Seconds())
}
