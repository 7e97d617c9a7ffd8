package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 任务指标
	JobsCreated   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsCleaned   prometheus.Counter
	JobsActive    prometheus.Gauge

	// 验证指标
	EmailsVerified   *prometheus.CounterVec
	BatchesProcessed prometheus.Counter

	// 外部 API 指标
	VerifierRequestsTotal   *prometheus.CounterVec
	VerifierRequestDuration prometheus.Histogram

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailverify_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailverify_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		JobsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailverify_jobs_created_total",
			Help: "Total number of verification jobs created",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailverify_jobs_completed_total",
			Help: "Total number of verification jobs completed",
		}),
		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailverify_jobs_failed_total",
			Help: "Total number of verification jobs failed",
		}),
		JobsCleaned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailverify_jobs_cleaned_total",
			Help: "Total number of jobs removed by the retention sweep",
		}),
		JobsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mailverify_jobs_active",
			Help: "Number of jobs currently held in the store",
		}),
		EmailsVerified: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailverify_emails_verified_total",
				Help: "Total number of email records resolved, by outcome",
			},
			[]string{"status"},
		),
		BatchesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailverify_batches_processed_total",
			Help: "Total number of verification batches processed",
		}),
		VerifierRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailverify_verifier_requests_total",
				Help: "Total number of calls to the external verification API",
			},
			[]string{"outcome"},
		),
		VerifierRequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailverify_verifier_request_duration_seconds",
			Help:    "External verification API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		PanicsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailverify_panics_total",
			Help: "Total number of recovered panics",
		}),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordJobCreated 记录任务创建
func (m *Metrics) RecordJobCreated() { m.JobsCreated.Inc() }

// RecordJobCompleted 记录任务完成
func (m *Metrics) RecordJobCompleted() { m.JobsCompleted.Inc() }

// RecordJobFailed 记录任务失败
func (m *Metrics) RecordJobFailed() { m.JobsFailed.Inc() }

// RecordJobsCleaned 记录保留清理删除的任务数
func (m *Metrics) RecordJobsCleaned(count int) { m.JobsCleaned.Add(float64(count)) }

// SetActiveJobs 更新当前任务数量
func (m *Metrics) SetActiveJobs(count int) { m.JobsActive.Set(float64(count)) }

// RecordEmailVerified 记录单条邮箱的最终状态
func (m *Metrics) RecordEmailVerified(status string) {
	m.EmailsVerified.WithLabelValues(status).Inc()
}

// RecordBatchProcessed 记录批次完成
func (m *Metrics) RecordBatchProcessed() { m.BatchesProcessed.Inc() }

// RecordVerifierRequest 记录一次外部 API 调用
func (m *Metrics) RecordVerifierRequest(outcome string, duration time.Duration) {
	m.VerifierRequestsTotal.WithLabelValues(outcome).Inc()
	m.VerifierRequestDuration.Observe(duration.Seconds())
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() { m.PanicsTotal.Inc() }
