package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webmirror"

// Metrics tracks operational counters of a mirror run. The counters are
// plain atomics so hot paths stay cheap; each one is exported to Prometheus
// through a function collector on the Metrics' own registry.
type Metrics struct {
	PagesFetched     atomic.Int64
	PagesFailed      atomic.Int64
	PagesMirrored    atomic.Int64
	BytesDownloaded  atomic.Int64
	ArtifactsStored  atomic.Int64
	LinksDiscovered  atomic.Int64
	LinksEnqueued    atomic.Int64
	QueueDepth       atomic.Int64
	UnknownTagsFound atomic.Int64

	registry *prometheus.Registry
	handler  http.Handler
	logger   *slog.Logger
}

// NewMetrics creates a new Metrics instance with its collectors registered.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logger:   logger.With("component", "metrics"),
	}

	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}

	m.registry.MustRegister(
		counter("pages_fetched_total", "Pages fetched", &m.PagesFetched),
		counter("pages_failed_total", "Pages whose fetch or processing failed", &m.PagesFailed),
		counter("pages_mirrored_total", "Pages fully processed and persisted", &m.PagesMirrored),
		counter("bytes_downloaded_total", "Raw HTML bytes downloaded", &m.BytesDownloaded),
		counter("artifacts_stored_total", "Artifacts written to storage", &m.ArtifactsStored),
		counter("links_discovered_total", "Normalized links discovered", &m.LinksDiscovered),
		counter("links_enqueued_total", "Links accepted into the frontier", &m.LinksEnqueued),
		counter("unknown_tags_total", "Distinct unrendered tags seen per page", &m.UnknownTagsFound),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current frontier queue depth",
		}, func() float64 { return float64(m.QueueDepth.Load()) }),
	)

	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Registry returns the Prometheus registry holding the mirror's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ServeHTTP serves metrics in Prometheus exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_fetched":    m.PagesFetched.Load(),
		"pages_failed":     m.PagesFailed.Load(),
		"pages_mirrored":   m.PagesMirrored.Load(),
		"bytes_downloaded": m.BytesDownloaded.Load(),
		"artifacts_stored": m.ArtifactsStored.Load(),
		"links_discovered": m.LinksDiscovered.Load(),
		"links_enqueued":   m.LinksEnqueued.Load(),
		"unknown_tags":     m.UnknownTagsFound.Load(),
		"queue_depth":      m.QueueDepth.Load(),
	}
}
