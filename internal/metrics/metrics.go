// Package metrics keeps daemon counters in a Prometheus registry and
// writes them to a node-exporter textfile.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "thor"

// Drop reasons.
const (
	ReasonQueueFull   = "queue_full"
	ReasonNothingDraw = "nothing_to_render"
	ReasonRenderError = "render_error"
	ReasonShutdown    = "shutdown"
	ReasonReload      = "reload"
)

// Reload causes.
const (
	CauseSignal  = "signal"
	CauseWatcher = "watcher"
	CauseBackend = "backend"
)

// Metrics holds every metric the daemon exports.
type Metrics struct {
	reg *prometheus.Registry

	received       *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	protocolErrors *prometheus.CounterVec
	reloads        *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	visibleNotes   prometheus.Gauge
	startTime      prometheus.Gauge
}

// New registers the daemon metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,
		received: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages decoded, by popup kind.",
		}, []string{"kind"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages discarded without being shown, by reason.",
		}, []string{"reason"}),
		protocolErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Client connections rejected by the codec, by error type.",
		}, []string{"type"}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Configuration reloads, by cause.",
		}, []string{"cause"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Notes waiting for a free slot.",
		}),
		visibleNotes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notes_visible",
			Help:      "Notes currently stacked on screen.",
		}),
		startTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Unix time the daemon started.",
		}),
	}
	m.startTime.SetToCurrentTime()
	return m
}


// Received counts a decoded message.
func (m *Metrics) Received(kind string) { m.received.WithLabelValues(kind).Inc() }

// Dropped counts a discarded message.
func (m *Metrics) Dropped(reason string) { m.dropped.WithLabelValues(reason).Inc() }

// DroppedN counts n discarded messages.
func (m *Metrics) DroppedN(reason string, n int) {
	if n > 0 {
		m.dropped.WithLabelValues(reason).Add(float64(n))
	}
}

// ProtocolError counts a rejected connection.
func (m *Metrics) ProtocolError(kind string) { m.protocolErrors.WithLabelValues(kind).Inc() }

// Reloaded counts a reload.
func (m *Metrics) Reloaded(cause string) { m.reloads.WithLabelValues(cause).Inc() }

// SetDisplay records the queue depth and the number of visible notes.
func (m *Metrics) SetDisplay(queued, visible int) {
	m.queueDepth.Set(float64(queued))
	m.visibleNotes.Set(float64(visible))
}

// WriteTextfile writes the metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Run writes the textfile every interval until ctx is cancelled, then
// once more so the file reflects the final counts.
func (m *Metrics) Run(ctx context.Context, path string, interval time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return m.WriteTextfile(path)
		case <-ticker.C:
			if err := m.WriteTextfile(path); err != nil {
				logger.Warn("failed to export metrics", "path", path, "error", err)
			}
		}
	}
}
