package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Outcome label values.
const (
	OutcomeMeasured = "measured"
	OutcomeFailed   = "failed"
)

// Manager owns the harness metrics. It satisfies harness.Recorder and is safe
// for concurrent use.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         *prometheus.Registry

	cells         *prometheus.CounterVec
	cellDuration  *prometheus.HistogramVec
	loads         *prometheus.CounterVec
	loadDuration  prometheus.Histogram
	runDuration   prometheus.Gauge
	runFailures   prometheus.Gauge
	lastRunUnix   prometheus.Gauge
	matrixVariant prometheus.Gauge
	matrixFiles   prometheus.Gauge
}

// NewManager creates a manager on a private registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "noiseablate",
		subsystem:        "harness",
		histogramBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		constLabels:      map[string]string{},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.cells = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cells_total",
		Help:        "Variant/file cells run, by variant and outcome",
		ConstLabels: m.constLabels,
	}, []string{"variant", "outcome"})

	m.cellDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cell_duration_seconds",
		Help:        "Time to run one variant pipeline on one file",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"variant"})

	m.loads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "loads_total",
		Help:        "Coarse channel loads, by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.loadDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "load_duration_seconds",
		Help:        "Time to open a recording and read its coarse channel",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.runDuration = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_seconds",
		Help:        "Wall time of the last run",
		ConstLabels: m.constLabels,
	})

	m.runFailures = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_failed_cells",
		Help:        "Failed cells in the last run",
		ConstLabels: m.constLabels,
	})

	m.lastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the last run finished",
		ConstLabels: m.constLabels,
	})

	m.matrixVariant = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "matrix_variants",
		Help:        "Variants in the last run's matrix",
		ConstLabels: m.constLabels,
	})

	m.matrixFiles = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "matrix_files",
		Help:        "Files in the last run's matrix",
		ConstLabels: m.constLabels,
	})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeMeasured
}

// ObserveLoad records one coarse channel load.
func (m *Manager) ObserveLoad(_ string, elapsed time.Duration, err error) {
	m.loads.WithLabelValues(outcome(err)).Inc()
	m.loadDuration.Observe(elapsed.Seconds())
}

// ObserveCell records one variant/file cell.
func (m *Manager) ObserveCell(variant, _ string, elapsed time.Duration, err error) {
	m.cells.WithLabelValues(variant, outcome(err)).Inc()
	m.cellDuration.WithLabelValues(variant).Observe(elapsed.Seconds())
}

// ObserveRun records the outcome of a finished run.
func (m *Manager) ObserveRun(finished time.Time, elapsed time.Duration, variants, files, failed int) {
	m.runDuration.Set(elapsed.Seconds())
	m.runFailures.Set(float64(failed))
	m.lastRunUnix.Set(float64(finished.UnixNano()) / 1e9)
	m.matrixVariant.Set(float64(variants))
	m.matrixFiles.Set(float64(files))
}

// Gatherer exposes the registry, e.g. for promhttp.
func (m *Manager) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes every metric in the text exposition format for the
// node_exporter textfile collector. The file is replaced atomically.
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: textfile %s: %v", ErrExportFailed, path, err)
	}
	return nil
}

// Push replaces the job's metrics on a Pushgateway.
func (m *Manager) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("%w: push %s: %v", ErrExportFailed, url, err)
	}
	return nil
}
