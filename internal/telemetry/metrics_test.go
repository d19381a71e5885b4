package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/clickbait-cli/internal/evaluate"
)

func sampleReport() *evaluate.Report {
	return &evaluate.Report{
		Rows:       100,
		Columns:    540,
		VocabSizes: map[string]int{"targetTitle": 300, "targetDescription": 200, "targetKeywords": 6},
		TrainRows:  70,
		TestRows:   30,
		CrossVal:   []float64{0.8, 0.9, 0.7},
		ROCAUC:     0.85,
		Classification: evaluate.Classification{
			Accuracy: 0.75,
		},
		FalsePositives: []evaluate.FalsePositive{{ID: "1", Title: "You won't believe"}},
	}
}

func TestObserveReport(t *testing.T) {
	m := NewRunMetrics()
	m.ObserveReport(sampleReport())

	assert.InDelta(t, 0.85, testutil.ToFloat64(m.rocAUC), 1e-9)
	assert.InDelta(t, 0.75, testutil.ToFloat64(m.accuracy), 1e-9)
	assert.InDelta(t, 0.8, testutil.ToFloat64(m.crossVal), 1e-9)
	assert.Equal(t, 540.0, testutil.ToFloat64(m.columns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.falsePositives))
	assert.Equal(t, 70.0, testutil.ToFloat64(m.rows.WithLabelValues("train")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.vocabSize.WithLabelValues("targetKeywords")))
}

func TestObservePhase(t *testing.T) {
	m := NewRunMetrics()
	m.ObservePhase("fit", 1500*time.Millisecond, false)
	m.ObservePhase("evaluate", time.Second, true)

	assert.InDelta(t, 1.5, testutil.ToFloat64(m.phaseDuration.WithLabelValues("fit")), 1e-9)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.phaseFailed.WithLabelValues("fit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.phaseFailed.WithLabelValues("evaluate")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.phaseDuration))
}

func TestFinish(t *testing.T) {
	m := NewRunMetrics()
	at := time.Unix(1700000000, 0)

	m.Finish(true, at)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.success))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.finished))

	m.Finish(false, at)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.success))
}

func TestWriteTextfile(t *testing.T) {
	m := NewRunMetrics()
	m.ObserveReport(sampleReport())
	m.Finish(true, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "metrics", "clickbait.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "# TYPE clickbait_test_roc_auc gauge")
	assert.Contains(t, out, "clickbait_test_roc_auc 0.85")
	assert.Contains(t, out, `clickbait_rows{split="test"} 30`)
	assert.Contains(t, out, "clickbait_run_success 1")
}

func TestRegistry(t *testing.T) {
	m := NewRunMetrics()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	// Vec gauges without children are not gathered.
	assert.Len(t, families, 7)
}
