package ballistics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	projectileFiredCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "projectile_fired_count_total",
		Help: "The total number of projectiles fired.",
	})

	projectileHitCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "projectile_hit_count_total",
		Help: "The total number of projectiles that hit a ship.",
	})

	collisionTestCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collision_test_count_total",
		Help: "The total number of narrow phase collision tests.",
	})
)

func instrumentFire() {
	projectileFiredCount.Inc()
}

func instrumentHit() {
	projectileHitCount.Inc()
}

func instrumentCollisionTests(n int) {
	collisionTestCount.Add(float64(n))
}
