package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherdiary_provider_fetches_total",
			Help: "Weather provider fetches by parse outcome",
		},
		[]string{"status"},
	)

	ProviderLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "weatherdiary_provider_latency_seconds",
			Help:    "Weather provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WeatherCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherdiary_weather_cache_lookups_total",
			Help: "Weather cache lookups made while creating diaries",
		},
		[]string{"result"},
	)

	DiariesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherdiary_diaries_created_total",
			Help: "Diary entries created",
		},
	)

	RefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherdiary_refresh_runs_total",
			Help: "Scheduled weather refresh runs",
		},
		[]string{"status"},
	)

	TxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherdiary_tx_serialization_retries_total",
			Help: "Transactions retried after a serialization failure",
		},
	)
)
