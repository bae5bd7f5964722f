package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	ticksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogstate_ticks_processed_total",
		Help: "Total number of engine ticks completed",
	})

	samplesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogstate_samples_rejected_total",
		Help: "Total number of out-of-order eye samples rejected",
	})

	insightsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogstate_insights_total",
		Help: "Total number of insights produced, by type",
	}, []string{"type"})

	fatigueScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cogstate_fatigue_score",
		Help:    "Distribution of fatigue scores for ticks with enough eye data",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cogstate_active_sessions",
		Help: "Number of live sessions",
	})

	persistDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogstate_snapshot_persist_dropped_total",
		Help: "Snapshots not cached because the persistence queue was full",
	})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency labelled by route template,
// so session IDs never become label values.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
