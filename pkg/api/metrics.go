package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes.
const (
	outcomeSuccess        = "success"
	outcomeTransportError = "transport_error"
	outcomeInvalid        = "invalid"
)

// apiResultsTotal tracks Fetch results by request name and outcome
var apiResultsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reqcache_api_results_total",
		Help: "Total fetch results by request name and outcome",
	},
	[]string{"name", "outcome"},
)
