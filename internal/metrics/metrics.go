// Package metrics 分析流水线的 Prometheus 指标
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "report_insight"

// Metrics 应用指标集合
type Metrics struct {
	// 队列
	JobsClaimed   prometheus.Counter
	JobsReclaimed prometheus.Counter
	JobsFinished  *prometheus.CounterVec
	JobsInFlight  prometheus.Gauge

	// 流水线
	AnalysisOutcomes *prometheus.CounterVec
	StageLatency     *prometheus.HistogramVec
	FetchFailures    *prometheus.CounterVec
	ModelCalls       *prometheus.CounterVec
	NormalizeResults *prometheus.CounterVec

	// 限流
	ThrottleRejections prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default 注册到全局 Registerer 的指标，进程内只注册一次
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New 创建并注册指标，测试中传入独立的 Registry
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsClaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_claimed_total",
			Help:      "Total number of analysis jobs claimed by workers",
		}),
		JobsReclaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_reclaimed_total",
			Help:      "Jobs claimed again after their lease expired",
		}),
		JobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_finished_total",
			Help:      "Analysis jobs finished, by job status",
		}, []string{"status"}),
		JobsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently being processed by this instance",
		}),
		AnalysisOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "outcomes_total",
			Help:      "Terminal analysis outcomes (completed, failed, skipped)",
		}, []string{"outcome"}),
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		FetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "fetch_failures_total",
			Help:      "Binary fetch failures by kind",
		}, []string{"kind"}),
		ModelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "model_calls_total",
			Help:      "Model invocations by result (success, fallback)",
		}, []string{"result"}),
		NormalizeResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "normalize_results_total",
			Help:      "Normalizer results by kind",
		}, []string{"kind"}),
		ThrottleRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Re-analysis requests rejected by the per-user throttle",
		}),
	}
}
