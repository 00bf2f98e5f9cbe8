package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsProcessedTotal, jobStageLatencyMs, queueDepth, queueAttempts, deadLettersTotal)
}

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_processed_total",
		Help: "Total number of restoration jobs reaching a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'succeeded', 'failed'
)

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

var jobStageLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "job_stage_latency_ms",
		Help:    "Per-stage worker pipeline latency in milliseconds.",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	},
	[]string{"stage"}, // classify | prompt | restore | total
)

func ObserveStageLatency(stage string, ms int64) {
	jobStageLatencyMs.WithLabelValues(norm(stage)).Observe(float64(ms))
}

var queueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Claimable tasks currently waiting in the queue.",
	},
	[]string{},
)

func SetQueueDepth(n int) {
	queueDepth.WithLabelValues().Set(float64(n))
}

var queueAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_task_attempts_total",
		Help: "Task attempts made, labeled by outcome.",
	},
	[]string{"outcome"}, // claimed | rescheduled | completed | exhausted
)

func IncQueueAttempt(outcome string) {
	queueAttempts.WithLabelValues(norm(outcome)).Inc()
}

var deadLettersTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dead_letters_total",
		Help: "Tasks archived to the dead-letter store, labeled by action.",
	},
	[]string{"action"}, // archived | replayed | purged
)

func IncDeadLetter(action string) {
	deadLettersTotal.WithLabelValues(norm(action)).Inc()
}
