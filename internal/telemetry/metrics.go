// Package telemetry collects the metrics of a training run in a Prometheus
// registry and writes them in the text exposition format, for pickup by a
// node_exporter textfile collector.
package telemetry

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/clickbait-cli/internal/evaluate"
)

const namespace = "clickbait"

// RunMetrics holds the gauges for one training run.
type RunMetrics struct {
	reg *prometheus.Registry

	phaseDuration  *prometheus.GaugeVec
	phaseFailed    *prometheus.GaugeVec
	rows           *prometheus.GaugeVec
	columns        prometheus.Gauge
	vocabSize      *prometheus.GaugeVec
	crossVal       prometheus.Gauge
	rocAUC         prometheus.Gauge
	accuracy       prometheus.Gauge
	falsePositives prometheus.Gauge
	success        prometheus.Gauge
	finished       prometheus.Gauge
}

// NewRunMetrics registers the run gauges on a fresh registry.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		reg: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of each training phase.",
		}, []string{"phase"}),
		phaseFailed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_failed",
			Help:      "1 if the phase returned an error.",
		}, []string{"phase"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Rows in the feature matrix by split.",
		}, []string{"split"}),
		columns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "columns",
			Help:      "Columns in the feature matrix.",
		}),
		vocabSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vocabulary_size",
			Help:      "N-gram vocabulary size by text field.",
		}, []string{"field"}),
		crossVal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "crossval_accuracy_mean",
			Help:      "Mean cross-validation accuracy on the training prefix.",
		}),
		rocAUC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_roc_auc",
			Help:      "ROC AUC on the test suffix.",
		}),
		accuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_accuracy",
			Help:      "Accuracy on the test suffix.",
		}),
		falsePositives: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_false_positives",
			Help:      "Posts predicted clickbait that are not.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 if the last run completed, 0 if it failed.",
		}),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_finished_timestamp_seconds",
			Help:      "Unix time the last run ended.",
		}),
	}
	m.reg.MustRegister(
		m.phaseDuration, m.phaseFailed, m.rows, m.columns, m.vocabSize,
		m.crossVal, m.rocAUC, m.accuracy, m.falsePositives, m.success, m.finished,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry { return m.reg }

// ObservePhase records how long a phase took and whether it failed.
func (m *RunMetrics) ObservePhase(name string, d time.Duration, failed bool) {
	m.phaseDuration.WithLabelValues(name).Set(d.Seconds())
	v := 0.0
	if failed {
		v = 1
	}
	m.phaseFailed.WithLabelValues(name).Set(v)
}

// ObserveReport records the evaluation outcome of a completed run.
func (m *RunMetrics) ObserveReport(r *evaluate.Report) {
	m.rows.WithLabelValues("all").Set(float64(r.Rows))
	m.rows.WithLabelValues("train").Set(float64(r.TrainRows))
	m.rows.WithLabelValues("test").Set(float64(r.TestRows))
	m.columns.Set(float64(r.Columns))
	for field, n := range r.VocabSizes {
		m.vocabSize.WithLabelValues(field).Set(float64(n))
	}
	m.crossVal.Set(r.CrossValMean())
	m.rocAUC.Set(r.ROCAUC)
	m.accuracy.Set(r.Classification.Accuracy)
	m.falsePositives.Set(float64(len(r.FalsePositives)))
}

// Finish stamps the end of the run.
func (m *RunMetrics) Finish(success bool, at time.Time) {
	if success {
		m.success.Set(1)
	} else {
		m.success.Set(0)
	}
	m.finished.Set(float64(at.Unix()))
}

// WriteTextfile atomically writes the gathered metrics to path.
func (m *RunMetrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "telemetry: create dir %s", dir)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return eris.Wrapf(err, "telemetry: write %s", path)
	}
	return nil
}
