package reputation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guideu_reputation_transitions_total",
	Help: "Coin-changing vote transitions, by direction",
}, []string{"direction"})
