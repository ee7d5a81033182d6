package fabric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "teraland", Name: "sessions_total", Help: "Gateway sessions opened by outcome"},
		[]string{"outcome"},
	)
	sessionsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "teraland", Name: "sessions_inflight", Help: "Gateway sessions currently open"},
	)
	procedureDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "teraland",
			Name:      "procedure_duration_seconds",
			Help:      "Ledger procedure duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"procedure", "mode", "outcome"},
	)
	breakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "teraland", Name: "circuit_breaker_open", Help: "Circuit breaker state: 1=open, 0=closed"},
		[]string{"breaker"},
	)
)

func init() {
	prometheus.MustRegister(sessionsTotal, sessionsInflight, procedureDuration, breakerOpen)
}

func setBreakerState(name string, open bool) {
	if open {
		breakerOpen.WithLabelValues(name).Set(1)
	} else {
		breakerOpen.WithLabelValues(name).Set(0)
	}
}

func recordProcedure(name string, mode Mode, dur time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	procedureDuration.WithLabelValues(name, string(mode), outcome).Observe(dur.Seconds())
}
