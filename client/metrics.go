package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "convmemory_client",
		Name:      "requests_total",
		Help:      "HTTP attempts made by the SDK by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)
