package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

var (
	registerOnce sync.Once

	// Registry holds bio2bel metrics only; it backs WriteTextfile.
	Registry = prometheus.NewRegistry()

	populateRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bio2bel",
			Subsystem: "populate",
			Name:      "runs_total",
			Help:      "Plugin populate runs by outcome.",
		},
		[]string{"plugin", "outcome"},
	)
	populateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bio2bel",
			Subsystem: "populate",
			Name:      "duration_seconds",
			Help:      "Plugin populate duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"plugin", "outcome"},
	)
	exportRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bio2bel",
			Subsystem: "export",
			Name:      "runs_total",
			Help:      "Plugin BEL export runs by outcome.",
		},
		[]string{"plugin", "outcome"},
	)
	importFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bio2bel",
			Subsystem: "registry",
			Name:      "import_failures_total",
			Help:      "Plugins skipped during discovery.",
		},
		[]string{"plugin", "reason"},
	)
	registeredPlugins = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bio2bel",
			Subsystem: "registry",
			Name:      "plugins",
			Help:      "Plugins in the registry after discovery.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		Registry.MustRegister(populateRuns, populateDuration, exportRuns, importFailures, registeredPlugins)
	})
}

func outcome(success bool) string {
	if success {
		return OutcomeSucceeded
	}
	return OutcomeFailed
}

func RecordPopulate(plugin string, success bool, duration time.Duration) {
	RegisterMetrics()
	label := outcome(success)
	populateRuns.WithLabelValues(plugin, label).Inc()
	populateDuration.WithLabelValues(plugin, label).Observe(duration.Seconds())
}

func RecordExport(plugin string, success bool) {
	RegisterMetrics()
	exportRuns.WithLabelValues(plugin, outcome(success)).Inc()
}

func RecordImportFailure(plugin, reason string) {
	RegisterMetrics()
	importFailures.WithLabelValues(plugin, reason).Inc()
}

func SetRegisteredPlugins(n int) {
	RegisterMetrics()
	registeredPlugins.Set(float64(n))
}

// WriteTextfile dumps Registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	RegisterMetrics()
	return prometheus.WriteToTextfile(path, Registry)
}
