package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	repairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guideu_reconcile_repairs_total",
		Help: "Rows repaired by reconciliation, by kind",
	}, []string{"kind"})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guideu_reconcile_duration_seconds",
		Help:    "Reconciliation pass duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

func observe(r *Report) {
	repairsTotal.WithLabelValues("answer_counters").Add(float64(r.AnswerCounters))
	repairsTotal.WithLabelValues("owner_reputation").Add(float64(r.OwnerReputation))
	repairsTotal.WithLabelValues("profile_counters").Add(float64(r.ProfileCounters))
	repairsTotal.WithLabelValues("denormalized").Add(float64(r.Denormalized))
	passDuration.Observe(r.Duration.Seconds())
}
