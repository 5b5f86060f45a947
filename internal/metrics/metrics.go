// Package metrics exposes Prometheus collectors for sync jobs and PASS calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	jobsCreated  *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	passRequests *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
}

// New builds a collector on its own registry, with the Go runtime and process
// collectors included.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facilitysync",
			Name:      "jobs_created_total",
			Help:      "Sync jobs accepted, by action.",
		}, []string{"action"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facilitysync",
			Name:      "jobs_finished_total",
			Help:      "Sync jobs that reached a terminal status.",
		}, []string{"action", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "facilitysync",
			Name:      "job_duration_seconds",
			Help:      "Wall time of sync jobs from start to terminal status.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"action"}),
		passRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facilitysync",
			Name:      "pass_requests_total",
			Help:      "Requests sent to PASS, by operation and HTTP status (0 for transport errors).",
		}, []string{"op", "status"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "facilitysync",
			Name:      "pass_request_duration_seconds",
			Help:      "Latency of PASS requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.jobsCreated,
		c.jobsFinished,
		c.jobDuration,
		c.passRequests,
		c.passDuration,
	)
	return c
}

func (c *Collector) JobCreated(action string) {
	c.jobsCreated.WithLabelValues(action).Inc()
}

func (c *Collector) JobFinished(action, status string, elapsed time.Duration) {
	c.jobsFinished.WithLabelValues(action, status).Inc()
	c.jobDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (c *Collector) ObservePassRequest(op string, status int, elapsed time.Duration) {
	c.passRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.passDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
