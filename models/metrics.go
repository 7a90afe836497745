package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindLabel = "kind"
)

var (
	entityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "entity_count",
		Help: "The number of entities.",
	}, []string{kindLabel})

	entityCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entity_count_total",
		Help: "The total number of entities.",
	}, []string{kindLabel})

	tickCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tick_count_total",
		Help: "The total number of simulation ticks.",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_duration_seconds",
		Help:    "The time taken to run a simulation tick.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)

func instrumentIncreaseEntityGauge(kind EntityKind) {
	entityCount.
		With(prometheus.Labels{kindLabel: kind.String()}).
		Inc()
}

func instrumentDecreaseEntityGauge(kind EntityKind) {
	entityCount.
		With(prometheus.Labels{kindLabel: kind.String()}).
		Dec()
}

func instrumentCountEntity(kind EntityKind) {
	entityCountTotal.
		With(prometheus.Labels{kindLabel: kind.String()}).
		Inc()
}

func instrumentTick(d time.Duration) {
	tickCountTotal.Inc()
	tickDuration.Observe(d.Seconds())
}
