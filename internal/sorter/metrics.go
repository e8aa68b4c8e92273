package sorter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes run outcomes to Prometheus.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// FilesTotal counts processed files, labeled by disposition
	// ("copied", "renamed", "skipped", "failed").
	FilesTotal *prometheus.CounterVec

	// BytesCopied counts bytes published into buckets.
	BytesCopied prometheus.Counter

	// RunsTotal counts finished runs, labeled by status.
	RunsTotal *prometheus.CounterVec

	// RunDuration observes wall-clock run time in seconds.
	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers the sorter metrics with reg. If reg is
// nil, metrics are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sorter",
			Name:      "files_total",
			Help:      "Files processed, by disposition",
		}, []string{"disposition"}),
		BytesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sorter",
			Name:      "bytes_copied_total",
			Help:      "Bytes copied into extension buckets",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sorter",
			Name:      "runs_total",
			Help:      "Finished runs, by status",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sorter",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of sort runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 16),
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.FilesTotal, m.BytesCopied, m.RunsTotal, m.RunDuration} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	}
	return m
}

func (m *Metrics) observeEntry(e Entry) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(e.Disposition.String()).Inc()
	if e.Disposition == Copy || e.Disposition == RenameAndCopy {
		m.BytesCopied.Add(float64(e.Size))
	}
}

func (m *Metrics) observeRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}
