package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var ClassifierTier = factory.NewCounterVec(prometheus.CounterOpts{
	Name: "classifier_tier_total",
	Help: "Classification results by producing tier.",
}, []string{"provider"})

var ClassifierFailover = factory.NewCounter(prometheus.CounterOpts{
	Name: "classifier_failover_total",
	Help: "Times the model client switched between primary and secondary.",
})

var ClassifyDuration = factory.NewHistogram(prometheus.HistogramOpts{
	Name:    "classify_duration_seconds",
	Help:    "End to end classification latency.",
	Buckets: prometheus.DefBuckets,
})

var GatewayDedup = factory.NewCounter(prometheus.CounterOpts{
	Name: "gateway_dedup_total",
	Help: "Inbound messages suppressed by the dedup window.",
})

var EngineLoopLimit = factory.NewCounter(prometheus.CounterOpts{
	Name: "engine_loop_limit_total",
	Help: "Engine passes stopped by the auto advance iteration cap.",
})

var FlowsStarted = factory.NewCounterVec(prometheus.CounterOpts{
	Name: "flows_started_total",
	Help: "Flow runs started by module.",
}, []string{"module"})

var FlowsCompleted = factory.NewCounterVec(prometheus.CounterOpts{
	Name: "flows_completed_total",
	Help: "Flow runs closed out by terminal status.",
}, []string{"status"})
