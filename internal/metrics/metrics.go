// Package metrics provides Prometheus instrumentation for the forum. It
// exposes counters for submission outcomes, reports and enforcement actions,
// and a histogram for submission pipeline latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SubmissionsTotal counts submission attempts, labeled by kind
	// ("topic", "reply") and outcome ("created", "flagged", "rejected_*",
	// "error").
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_submissions_total",
		Help: "Total number of topic and reply submissions by outcome",
	}, []string{"kind", "outcome"})

	// SubmissionDuration records how long the submission pipeline takes.
	SubmissionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forum_submission_duration_seconds",
		Help:    "Submission pipeline latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// ReportsTotal counts created reports by report type.
	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_reports_total",
		Help: "Total number of reports submitted",
	}, []string{"type"})

	// ReportTransitions counts report status changes by target status.
	ReportTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_report_transitions_total",
		Help: "Total number of report status transitions",
	}, []string{"status"})

	// EnforcementActions counts admin actions by action and outcome
	// ("ok", "rejected", "error").
	EnforcementActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_enforcement_actions_total",
		Help: "Total number of admin enforcement actions",
	}, []string{"action", "outcome"})

	// NotificationFailures counts best-effort side effects that failed,
	// labeled by path ("store", "publish", "fanout", "tags", "mentions",
	// "reply", "enforcement").
	NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_notification_failures_total",
		Help: "Total number of failed best-effort notification side effects",
	}, []string{"path"})

	// HTTPRequests counts API requests by method, route pattern and status.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		SubmissionDuration,
		ReportsTotal,
		ReportTransitions,
		EnforcementActions,
		NotificationFailures,
		HTTPRequests,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
