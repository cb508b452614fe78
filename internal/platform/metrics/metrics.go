// Package metrics はパイプラインのPrometheusメトリクスを提供する
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blograg_jobs_total",
			Help: "Total number of generation jobs by kind and terminal status",
		},
		[]string{"kind", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blograg_job_duration_seconds",
			Help:    "Duration of job execution from claim to terminal state",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind", "status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blograg_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)

	claimAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blograg_claim_attempts_total",
			Help: "Job claim attempts by outcome (won/lost/error)",
		},
		[]string{"outcome"},
	)

	pendingJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blograg_pending_jobs",
			Help: "Pending jobs observed at the last worker poll",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blograg_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "method", "code"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blograg_http_request_duration_seconds",
			Help:    "HTTP request handling duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// RecordJob はジョブの終端結果と所要時間を記録する
func RecordJob(kind, status string, seconds float64) {
	jobsTotal.WithLabelValues(kind, status).Inc()
	jobDuration.WithLabelValues(kind, status).Observe(seconds)
}

// RecordStage はステージの実行結果と所要時間を記録する
func RecordStage(stage, status string, seconds float64) {
	stageDuration.WithLabelValues(stage, status).Observe(seconds)
}

// RecordClaim はクレーム試行の結果を記録する
func RecordClaim(outcome string) {
	claimAttempts.WithLabelValues(outcome).Inc()
}

// SetPendingJobs はポーリング時点のPENDINGジョブ数を記録する
func SetPendingJobs(n int) {
	pendingJobs.Set(float64(n))
}

// RecordHTTPRequest はHTTPリクエストの結果を記録する
func RecordHTTPRequest(route, method, code string, seconds float64) {
	httpRequests.WithLabelValues(route, method, code).Inc()
	httpDuration.WithLabelValues(route, method).Observe(seconds)
}

// Handler はPrometheusのエクスポートハンドラを返す
func Handler() http.Handler {
	return promhttp.Handler()
}
