package dynamics

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logitsFor(p ...float64) []float64 {
	o := make([]float64, len(p))
	for i, v := range p {
		o[i] = math.Log(v)
	}
	return o
}

func writeEpochs(t *testing.T, dir string) {
	epochs := [][]Row{
		{
			{GUID: 5, Gold: 0, Logits: logitsFor(0.2, 0.4, 0.4)},
			{GUID: 9, Gold: 2, Logits: logitsFor(0.1, 0.1, 0.8)},
		},
		{
			{GUID: 9, Gold: 2, Logits: logitsFor(0.1, 0.8, 0.1)},
			{GUID: 5, Gold: 0, Logits: logitsFor(0.6, 0.3, 0.1)},
		},
		{
			{GUID: 5, Gold: 0, Logits: logitsFor(0.7, 0.2, 0.1)},
			{GUID: 9, Gold: 2, Logits: logitsFor(0.1, 0.1, 0.8)},
		},
	}
	for e, rows := range epochs {
		require.NoError(t, WriteEpoch(dir, e, rows))
	}
}

func TestReadDirMergesEpochs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), Dir)
	writeEpochs(t, dir)

	n, err := Epochs(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := ReadDir(dir, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 5, records[0].GUID)
	assert.Equal(t, 0, records[0].Gold)
	require.Len(t, records[0].Logits, 3)
	assert.InDeltaSlice(t, logitsFor(0.6, 0.3, 0.1), records[0].Logits[1], 1e-12)

	records, err = ReadDir(dir, 2)
	require.NoError(t, err)
	assert.Len(t, records[1].Logits, 2)
}

func TestComputeMetrics(t *testing.T) {
	dir := t.TempDir()
	writeEpochs(t, dir)
	records, err := ReadDir(dir, 0)
	require.NoError(t, err)

	metrics, summary, err := Compute(records, false)
	require.NoError(t, err)
	require.Len(t, metrics, 2)

	m := metrics[0]
	assert.Equal(t, 5, m.GUID)
	assert.Equal(t, 0, m.Index)
	assert.InDelta(t, 0.5, m.Confidence, 1e-9)
	assert.InDelta(t, math.Sqrt(0.14/3), m.Variability, 1e-9)
	assert.Equal(t, 2, m.Correctness)
	assert.Equal(t, 0, m.Forgetfulness)
	assert.InDelta(t, 0.25, m.ThresholdCloseness, 1e-9)

	m = metrics[1]
	assert.Equal(t, 2, m.Correctness)
	assert.Equal(t, 1, m.Forgetfulness)

	require.Len(t, summary, 3)
	assert.InDelta(t, 0.5, summary[0].Accuracy, 1e-9)
	assert.InDelta(t, 0.5, summary[1].Accuracy, 1e-9)
	assert.InDelta(t, 1.0, summary[2].Accuracy, 1e-9)
	assert.InDelta(t, (-math.Log(0.7)-math.Log(0.8))/2, summary[2].Loss, 1e-9)

	withCI, _, err := Compute(records, true)
	require.NoError(t, err)
	v := 0.14 / 3
	assert.InDelta(t, math.Sqrt(v+v*v/2), withCI[0].Variability, 1e-9)
}

func TestForgetfulness(t *testing.T) {
	assert.Equal(t, NeverLearned, ForgetfulnessOf([]bool{false, false}))
	assert.Equal(t, 0, ForgetfulnessOf([]bool{false, true, true}))
	assert.Equal(t, 1, ForgetfulnessOf([]bool{true, false}))
	assert.Equal(t, 2, ForgetfulnessOf([]bool{true, false, true, false, false}))
}

func TestValue(t *testing.T) {
	m := Metrics{Confidence: 0.1, Variability: 0.2, Correctness: 3, Forgetfulness: 4, ThresholdCloseness: 0.09}
	for name, want := range map[string]float64{
		Confidence: 0.1, Variability: 0.2, Correctness: 3, Forgetfulness: 4, ThresholdCloseness: 0.09,
	} {
		got, err := m.Value(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := m.Value("loss")
	assert.Equal(t, ErrUnknownMetric, errors.Cause(err))
}

func TestReadDirErrors(t *testing.T) {
	_, err := ReadDir(t.TempDir(), 0)
	assert.Error(t, err)

	gap := t.TempDir()
	require.NoError(t, WriteEpoch(gap, 0, []Row{{GUID: 1, Gold: 0, Logits: []float64{1, 0, 0}}}))
	require.NoError(t, WriteEpoch(gap, 2, []Row{{GUID: 1, Gold: 0, Logits: []float64{1, 0, 0}}}))
	_, err = ReadDir(gap, 0)
	assert.Error(t, err)

	gold := t.TempDir()
	require.NoError(t, WriteEpoch(gold, 0, []Row{{GUID: 1, Gold: 0, Logits: []float64{1, 0, 0}}}))
	require.NoError(t, WriteEpoch(gold, 1, []Row{{GUID: 1, Gold: 1, Logits: []float64{1, 0, 0}}}))
	_, err = ReadDir(gold, 0)
	assert.Error(t, err)

	missing := t.TempDir()
	require.NoError(t, WriteEpoch(missing, 0, []Row{{GUID: 1, Gold: 0, Logits: []float64{1, 0, 0}}}))
	require.NoError(t, WriteEpoch(missing, 1, []Row{{GUID: 2, Gold: 0, Logits: []float64{1, 0, 0}}}))
	_, err = ReadDir(missing, 0)
	assert.Error(t, err)

	key := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(key, EpochFile(0)), []byte(`{"guid": 1, "gold": 0, "logits_epoch_1": [1, 0]}`), 0644))
	_, err = ReadDir(key, 0)
	assert.Error(t, err)

	_, _, err = Compute(nil, false)
	assert.Error(t, err)
}

func TestMetricsFiles(t *testing.T) {
	rows := []Metrics{
		{GUID: 3, Index: 0, Confidence: 0.75, Variability: 0.125, Correctness: 2, Forgetfulness: 1, ThresholdCloseness: 0.1875},
		{GUID: 8, Index: 1, Confidence: 0.5, Variability: 0.25, Correctness: 0, Forgetfulness: NeverLearned, ThresholdCloseness: 0.25},
	}
	dir := t.TempDir()
	for _, name := range []string{MetricsFile(0), "td_metrics.csv"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteMetrics(path, rows))
		back, err := ReadMetrics(path)
		require.NoError(t, err)
		assert.Equal(t, rows, back, name)
	}
	assert.Equal(t, "td_metrics_burn_out_2.jsonl", MetricsFile(2))

	require.NoError(t, WriteSummary(filepath.Join(dir, "summary.csv"), []EpochSummary{{Epoch: 0, Accuracy: 0.5, Loss: 0.7}}))
}
