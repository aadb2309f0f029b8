// Package metrics exposes sync run counters in Prometheus format. A run is a
// short-lived batch job, so metrics are written to a node_exporter textfile
// instead of being served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for prolet_files_total.
const (
	ResultCached  = "cached"
	ResultFetched = "fetched"
	ResultFailed  = "failed"
)

// Sync holds the metrics of one process. All methods are safe on a nil
// receiver so callers can leave metrics unset.
type Sync struct {
	reg *prometheus.Registry

	files         *prometheus.CounterVec
	bytesFetched  prometheus.Counter
	fetchDuration prometheus.Histogram
	retries       prometheus.Counter
	candidates    prometheus.Gauge
	cacheFailures prometheus.Counter
	lastRun       prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// New creates a Sync with its own registry.
func New() *Sync {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Sync{
		reg: reg,
		files: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prolet_files_total",
				Help: "Sync candidates by result",
			},
			[]string{"result"},
		),
		bytesFetched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "prolet_bytes_fetched_total",
				Help: "Bytes written to the output root by fetches",
			},
		),
		fetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prolet_fetch_duration_seconds",
				Help:    "Time to fetch and write one file, including retries",
				Buckets: prometheus.DefBuckets,
			},
		),
		retries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "prolet_fetch_retries_total",
				Help: "Fetch attempts repeated after a transient failure",
			},
		),
		candidates: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "prolet_candidates",
				Help: "Files selected for sync in the last run",
			},
		),
		cacheFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "prolet_cache_errors_total",
				Help: "Cache load or commit failures",
			},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "prolet_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
		lastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "prolet_last_success_timestamp_seconds",
				Help: "Unix time the last run finished without fetch failures",
			},
		),
	}
}

// Registry returns the registry holding all metrics.
func (m *Sync) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Candidates records the size of the candidate set.
func (m *Sync) Candidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Set(float64(n))
}

// Cached counts n cache hits.
func (m *Sync) Cached(n int) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(ResultCached).Add(float64(n))
}

// Fetched records one settled fetch.
func (m *Sync) Fetched(d time.Duration, bytes int64, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
	if err != nil {
		m.files.WithLabelValues(ResultFailed).Inc()
		return
	}
	m.files.WithLabelValues(ResultFetched).Inc()
	m.bytesFetched.Add(float64(bytes))
}

// Retried counts one retry.
func (m *Sync) Retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// CacheError counts a cache load or commit failure.
func (m *Sync) CacheError() {
	if m == nil {
		return
	}
	m.cacheFailures.Inc()
}

// RunFinished stamps the end of a run.
func (m *Sync) RunFinished(at time.Time, complete bool) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(at.Unix()))
	if complete {
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Sync) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}
