package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 模型调用
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_model_attempts_total",
			Help: "Total number of model attempts by stage and outcome",
		},
		[]string{"stage", "model", "outcome"}, // stage: primary, fallback; outcome: ok, timeout, unavailable, rate_limited, canceled, error
	)

	AttemptLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_model_attempt_seconds",
			Help:    "Model attempt latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"stage", "model"},
	)

	RateLimitRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_rate_limit_retries_total",
			Help: "Total number of retries after a 429 response",
		},
		[]string{"stage", "model"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_tool_calls_total",
			Help: "Total number of tool calls made by the research model",
		},
		[]string{"kind"},
	)

	// 整体运行
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_runs_total",
			Help: "Total number of research runs by result",
		},
		[]string{"result"}, // result: complete, fallback, error, aborted
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_run_duration_seconds",
			Help:    "End-to-end research run duration",
			Buckets: []float64{1, 5, 10, 30, 60, 90, 120, 180, 300},
		},
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "research_streams_active",
			Help: "Number of open research event streams",
		},
	)
)

// AttemptRecorder 记录单次模型调用
type AttemptRecorder struct {
	start time.Time
	stage string
	model string
}

// NewAttemptRecorder 开始计时
func NewAttemptRecorder(stage, model string) *AttemptRecorder {
	return &AttemptRecorder{start: time.Now(), stage: stage, model: model}
}

// Done 记录调用结果与耗时
func (r *AttemptRecorder) Done(outcome string) {
	AttemptsTotal.WithLabelValues(r.stage, r.model, outcome).Inc()
	AttemptLatency.WithLabelValues(r.stage, r.model).Observe(time.Since(r.start).Seconds())
}

// RecordRetry 记录一次限流重试
func (r *AttemptRecorder) RecordRetry() {
	RateLimitRetries.WithLabelValues(r.stage, r.model).Inc()
}

// RecordRun 记录一次完整运行
func RecordRun(result string, start time.Time) {
	RunsTotal.WithLabelValues(result).Inc()
	RunDuration.Observe(time.Since(start).Seconds())
}
