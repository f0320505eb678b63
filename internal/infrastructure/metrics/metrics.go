// Package metrics exposes Prometheus collectors for sync, scheduler, email and HTTP activity.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cf_tracker"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

var (
	JudgeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "judge_requests_total", Help: "Codeforces API requests by endpoint and result"},
		[]string{"endpoint", "result"},
	)
	JudgeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "judge_request_duration_seconds", Help: "Codeforces API request latency, excluding the pacing delay", Buckets: prometheus.DefBuckets},
		[]string{"endpoint"},
	)

	StudentSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "student_syncs_total", Help: "Per-student sync attempts by result"},
		[]string{"result"},
	)
	StudentSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: namespace, Name: "student_sync_duration_seconds", Help: "Duration of a single student sync", Buckets: []float64{1, 2, 5, 10, 20, 40, 80}},
	)
	AggregateRowsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "aggregate_rows_written_total", Help: "Derived rows inserted by kind"},
		[]string{"kind"},
	)

	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "job_runs_total", Help: "Scheduled job runs by job, trigger and result"},
		[]string{"job", "trigger", "result"},
	)
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "job_duration_seconds", Help: "Scheduled job run duration", Buckets: []float64{1, 10, 30, 60, 300, 900, 1800}},
		[]string{"job"},
	)

	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "emails_sent_total", Help: "Email attempts by kind and result"},
		[]string{"kind", "result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by method, route and status"},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			JudgeRequests, JudgeRequestDuration,
			StudentSyncs, StudentSyncDuration, AggregateRowsWritten,
			JobRuns, JobDuration,
			EmailsSent,
			HTTPRequests, HTTPRequestDuration,
		)
	})
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Since returns seconds elapsed since start, for histogram observations.
func Since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
