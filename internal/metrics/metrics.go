package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Questions answered, partitioned by detected intent
	questionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metalwatch_questions_total",
			Help: "Questions processed by detected intent",
		},
		[]string{"intent"},
	)

	// Answers by where the text came from: suggested, generated or fallback
	answersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metalwatch_answers_total",
			Help: "Answers delivered by source",
		},
		[]string{"source"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metalwatch_generation_duration_seconds",
			Help:    "Generative backend call latency by outcome",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"outcome"},
	)

	storeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metalwatch_store_failures_total",
			Help: "Price store errors surfaced as unavailable",
		},
	)

	digestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metalwatch_digest_runs_total",
			Help: "Scheduled digest runs by outcome",
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metalwatch_http_requests_total",
			Help: "HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metalwatch_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metalwatch_http_inflight_requests",
			Help: "HTTP requests currently being served",
		},
	)
)

// Recorder writes to the process-wide collectors.
type Recorder struct{}

// Question counts one processed question.
func (Recorder) Question(intent string) { questionsTotal.WithLabelValues(intent).Inc() }

// Answer counts one delivered answer.
func (Recorder) Answer(source string) { answersTotal.WithLabelValues(source).Inc() }

// StoreFailure counts one store error.
func (Recorder) StoreFailure() { storeFailuresTotal.Inc() }

// ObserveGeneration records a generative call.
func (Recorder) ObserveGeneration(outcome string, elapsed time.Duration) {
	generationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// DigestRun counts one scheduled digest run.
func (Recorder) DigestRun(outcome string) { digestRunsTotal.WithLabelValues(outcome).Inc() }

// RequestStarted tracks an in-flight HTTP request; call the returned func
// when it completes.
func (Recorder) RequestStarted() func(method, route string, status int) {
	start := time.Now()
	httpInFlight.Inc()
	return func(method, route string, status int) {
		httpInFlight.Dec()
		code := strconv.Itoa(status)
		httpRequestsTotal.WithLabelValues(method, route, code).Inc()
		httpRequestDuration.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())
	}
}
