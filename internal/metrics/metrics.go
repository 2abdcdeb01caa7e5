package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics
var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameOperationsTotal,
			Help: HelpTextOperationsTotal,
		},
		[]string{LabelOperation, LabelOutcome},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameOperationDuration,
			Help:    HelpTextOperationDuration,
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelOperation},
	)

	OperationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameOperationRetries,
			Help: HelpTextOperationRetries,
		},
		[]string{LabelOperation},
	)
)

// Cache metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameCacheHits,
			Help: HelpTextCacheHits,
		},
		[]string{LabelKind},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameCacheMisses,
			Help: HelpTextCacheMisses,
		},
		[]string{LabelKind},
	)
)

// Lock metrics
var (
	LockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricNameLockWaitSeconds,
			Help:    HelpTextLockWaitSeconds,
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 3},
		},
	)
)

// Drop metrics
var (
	DropRollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameDropRollsTotal,
			Help: HelpTextDropRollsTotal,
		},
		[]string{LabelTable},
	)
)
