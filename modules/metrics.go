package modules

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	moduleLabel = "module"
	statusLabel = "status"
)

var (
	moduleTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "module_tick_duration_seconds",
		Help:    "The time taken by a module to run a tick.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{moduleLabel})

	moduleTickCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "module_tick_count_total",
		Help: "The total number of ticks run by a module.",
	}, []string{moduleLabel, statusLabel})
)

func instrumentModuleTick(module string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	moduleTickDuration.
		With(prometheus.Labels{moduleLabel: module}).
		Observe(d.Seconds())
	moduleTickCount.
		With(prometheus.Labels{moduleLabel: module, statusLabel: status}).
		Inc()
}
