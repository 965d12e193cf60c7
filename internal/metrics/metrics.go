// Package metrics declares the Prometheus collectors exported by ShelfView.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "shelfview"

const (
	LabelOutcome = "outcome"
	LabelMethod  = "method"
	LabelStatus  = "status"

	OutcomeApplied  = "applied"
	OutcomeStale    = "stale"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

var LiveHandles = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name:      "live_handles",
		Help:      "Preview page handles currently materialized",
		Namespace: Namespace,
	},
)

var PreviewResponses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      "preview_responses_total",
		Help:      "Preview requests by outcome",
		Namespace: Namespace,
	},
	[]string{LabelOutcome},
)

var HTTPRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      "http_requests_total",
		Help:      "HTTP requests served",
		Namespace: Namespace,
	},
	[]string{LabelMethod, LabelStatus},
)

var Rescales = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      "preview_rescales_total",
		Help:      "Scaled preview variants produced",
		Namespace: Namespace,
	},
)
