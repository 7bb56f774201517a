package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChunksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridverify_chunks_processed_total",
			Help: "Total chunks folded into accumulators",
		},
		[]string{"variable"},
	)

	SamplesAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridverify_samples_accepted_total",
			Help: "Forecast/observation pairs accepted into sufficient statistics",
		},
		[]string{"variable"},
	)

	SamplesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridverify_samples_rejected_total",
			Help: "Pairs excluded as missing or invalid",
		},
		[]string{"variable"},
	)

	CheckpointSaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridverify_checkpoint_saves_total",
			Help: "Checkpoint snapshots written",
		},
	)

	CheckpointDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridverify_checkpoint_duration_seconds",
			Help:    "Time to snapshot and persist all live accumulators",
			Buckets: prometheus.DefBuckets,
		},
	)

	ObsAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridverify_obs_api_calls_total",
			Help: "Total observation API calls",
		},
		[]string{"endpoint", "status"},
	)

	ObsAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridverify_obs_api_latency_seconds",
			Help:    "Observation API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)
