// Package metrics counts stage outcomes, plugin latency and violations for
// one lint run. Each Recorder owns a private registry so concurrent runs and
// tests never share series.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Recorder struct {
	reg *prometheus.Registry

	StageOutcomes  *prometheus.CounterVec
	PluginDuration *prometheus.HistogramVec
	PluginErrors   *prometheus.CounterVec
	Violations     *prometheus.CounterVec
	FilesLinted    prometheus.Counter
	FileErrors     prometheus.Counter
	RequestBytes   *prometheus.HistogramVec
	ParseDuration  prometheus.Histogram
	WatcherEvents  prometheus.Counter
}

// New registers the sv-lint series on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		StageOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "svlint_stage_outcomes_total",
			Help: "Stage outcomes by stage and status.",
		}, []string{"stage", "status"}),
		PluginDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "svlint_plugin_seconds",
			Help:    "Wall time of one plugin invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		PluginErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "svlint_plugin_errors_total",
			Help: "Failed plugin invocations by stage and error kind.",
		}, []string{"stage", "kind"}),
		Violations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "svlint_violations_total",
			Help: "Reported violations by stage and severity.",
		}, []string{"stage", "severity"}),
		FilesLinted: f.NewCounter(prometheus.CounterOpts{
			Name: "svlint_files_total",
			Help: "Files processed.",
		}),
		FileErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "svlint_file_errors_total",
			Help: "Files that could not be linted.",
		}),
		RequestBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "svlint_request_bytes",
			Help:    "Serialized request size per stage.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"stage"}),
		ParseDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "svlint_parse_seconds",
			Help:    "Time spent preprocessing and parsing one file.",
			Buckets: prometheus.DefBuckets,
		}),
		WatcherEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "svlint_watcher_events_total",
			Help: "File system events that triggered a re-lint.",
		}),
	}
}

// Registry exposes the private registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveStage records one stage outcome.
func (r *Recorder) ObserveStage(stage, status string, d time.Duration) {
	r.StageOutcomes.WithLabelValues(stage, status).Inc()
	if status != "skipped" {
		r.PluginDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// WriteTextfile exports the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
