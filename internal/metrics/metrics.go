// Package metrics exposes Prometheus metrics for the monitor loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tweetwatch"

// Cycle outcomes recorded by CycleDone.
const (
	CycleOK      = "ok"
	CycleError   = "error"
	CyclePanic   = "panic"
	CycleStopped = "stopped"
)

// Metrics holds the monitor's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	cycles        *prometheus.CounterVec
	fetched       *prometheus.CounterVec
	newPosts      *prometheus.CounterVec
	processed     prometheus.Counter
	failures      prometheus.Counter
	notifications *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
}

// New creates and registers the monitor metrics.
func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}

	m.cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of monitor cycles by outcome",
		},
		[]string{"status"},
	)
	m.fetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_fetched_total",
			Help:      "Posts returned by the search API",
		},
		[]string{"account"},
	)
	m.newPosts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_new_total",
			Help:      "Fetched posts not seen before",
		},
		[]string{"account"},
	)
	m.processed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_processed_total",
		Help:      "Posts carried through the whole pipeline",
	})
	m.failures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "post_failures_total",
		Help:      "Per-post pipeline failures",
	})
	m.notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Webhook notifications by result",
		},
		[]string{"result"},
	)
	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of one monitor cycle",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	m.lastCycle = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_cycle_timestamp_seconds",
		Help:      "Unix time the last cycle finished",
	})

	m.reg.MustRegister(
		m.cycles, m.fetched, m.newPosts, m.processed, m.failures,
		m.notifications, m.cycleDuration, m.lastCycle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// CycleDone records a finished cycle.
func (m *Metrics) CycleDone(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.lastCycle.SetToCurrentTime()
}

// Fetched records posts returned for an account.
func (m *Metrics) Fetched(account string, n int) {
	if m == nil {
		return
	}
	m.fetched.WithLabelValues(account).Add(float64(n))
}

// NewPost records one unseen post for an account.
func (m *Metrics) NewPost(account string) {
	if m == nil {
		return
	}
	m.newPosts.WithLabelValues(account).Inc()
}

// PostProcessed records a post that completed the pipeline.
func (m *Metrics) PostProcessed() {
	if m == nil {
		return
	}
	m.processed.Inc()
}

// PostFailed records a post whose pipeline failed.
func (m *Metrics) PostFailed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

// Notified records a webhook delivery result.
func (m *Metrics) Notified(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// Router serves /metrics and /healthz. ready reports loop liveness; a nil
// ready is treated as always healthy.
func (m *Metrics) Router(ready func() bool) http.Handler {
	r := chi.NewRouter()

	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			http.Error(w, "stopping", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
