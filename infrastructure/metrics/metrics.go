package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sp_publish_attempts_total",
			Help: "Platform adapter invocations by outcome",
		},
		[]string{"platform", "outcome", "trigger"},
	)

	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sp_publish_duration_seconds",
			Help:    "Duration of a full platform publish protocol",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"platform"},
	)

	taskTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sp_scheduled_task_transitions_total",
			Help: "Scheduled task status changes",
		},
		[]string{"platform", "status"},
	)

	tasksArmed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sp_scheduled_tasks_armed",
		Help: "One-shot triggers currently registered in the scheduler",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sp_http_requests_total",
			Help: "HTTP requests handled by the API",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sp_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// trigger is "immediate" or "scheduled".
func ObservePublish(platform, outcome, trigger string, elapsed time.Duration) {
	publishTotal.WithLabelValues(platform, outcome, trigger).Inc()
	publishDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
}

func TaskTransition(platform, status string) {
	taskTransitions.WithLabelValues(platform, status).Inc()
}

func TaskArmed()    { tasksArmed.Inc() }
func TaskDisarmed() { tasksArmed.Dec() }

func ResetArmed() { tasksArmed.Set(0) }
