package streak

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var incrementsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guideu_streak_increments_total",
	Help: "Days credited to a daily streak",
})
