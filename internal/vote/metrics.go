package vote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guideu_votes_total",
	Help: "Vote requests, by outcome",
}, []string{"outcome"})
