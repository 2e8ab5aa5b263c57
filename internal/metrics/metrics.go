package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pageforge_runs_started_total",
			Help: "Total number of generation runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageforge_runs_completed_total",
			Help: "Total number of generation runs finished, by outcome",
		},
		[]string{"outcome"},
	)

	StageFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageforge_stage_fallbacks_total",
			Help: "Times a pipeline stage fell back to its static result",
		},
		[]string{"stage"},
	)

	BlocksGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageforge_blocks_generated_total",
			Help: "Blocks generated, by block type and outcome",
		},
		[]string{"block_type", "outcome"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pageforge_model_call_duration_seconds",
			Help:    "Model invocation latency by role",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"role", "provider"},
	)

	PublishOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageforge_publish_total",
			Help: "Publish pipeline outcomes",
		},
		[]string{"outcome"},
	)

	TokenRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pageforge_token_refreshes_total",
			Help: "Times the publish bearer token was exchanged",
		},
	)
)
