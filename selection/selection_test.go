package selection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/dynamics"
	"github.com/neurlang/cartography/logs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ten examples, guid 100+i, confidence rising with i, variability peaking in the middle
func fixture() ([]dynamics.Metrics, datasets.Dataset) {
	var rows []dynamics.Metrics
	var d datasets.Dataset
	variability := []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.35, 0.25, 0.15, 0.05, 0.02}
	for i := 0; i < 10; i++ {
		c := float64(i) / 10
		rows = append(rows, dynamics.Metrics{
			GUID:               100 + i,
			Index:              i,
			Confidence:         c,
			Variability:        variability[i],
			Correctness:        i / 3,
			ThresholdCloseness: c * (1 - c),
		})
		d = append(d, datasets.Example{GUID: 100 + i, Premise: "p", Hypothesis: "h", Label: i % 3})
	}
	return rows, d
}

func guidsOf(rows []dynamics.Metrics) (o []int) {
	for _, r := range rows {
		o = append(o, r.GUID)
	}
	return
}

func TestConsiderAscendingOrder(t *testing.T) {
	for metric, want := range map[string]bool{
		dynamics.Variability:        false,
		dynamics.Confidence:         true,
		dynamics.ThresholdCloseness: false,
		dynamics.Forgetfulness:      false,
		dynamics.Correctness:        true,
	} {
		got, err := ConsiderAscendingOrder(metric)
		require.NoError(t, err)
		assert.Equal(t, want, got, metric)
	}
	_, err := ConsiderAscendingOrder("loss")
	assert.Equal(t, dynamics.ErrUnknownMetric, errors.Cause(err))
}

func TestOrder(t *testing.T) {
	rows, _ := fixture()

	sorted, err := Order(rows, dynamics.Confidence, false)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 101, 102}, guidsOf(sorted[:3]))

	sorted, err = Order(rows, dynamics.Confidence, true)
	require.NoError(t, err)
	assert.Equal(t, []int{109, 108, 107}, guidsOf(sorted[:3]))

	sorted, err = Order(rows, dynamics.Variability, false)
	require.NoError(t, err)
	assert.Equal(t, []int{105, 104, 106}, guidsOf(sorted[:3]))

	// ties keep the input order
	sorted, err = Order(rows, dynamics.Correctness, false)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 101, 102, 103}, guidsOf(sorted[:4]))

	assert.Equal(t, 100, rows[0].GUID, "input must not be reordered")
}

func TestSubsample(t *testing.T) {
	rows, d := fixture()
	sub, s, err := Subsample(rows, d, Options{Metric: dynamics.Variability, Fraction: DefaultFraction})
	require.NoError(t, err)
	assert.Equal(t, 3, len(sub))
	assert.Equal(t, []int{105, 104, 106}, s.GUIDs)
	assert.Equal(t, 105, sub[0].GUID)

	_, s, err = Subsample(rows, d, Options{Metric: dynamics.Confidence, Worst: true, Fraction: 0.2})
	require.NoError(t, err)
	assert.Equal(t, []int{109, 108}, s.GUIDs)

	_, s, err = Subsample(rows, d, Options{Metric: dynamics.Confidence, BothEnds: true, Fraction: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 101, 102, 108, 109}, s.GUIDs)
}

func TestSubsampleErrors(t *testing.T) {
	rows, d := fixture()
	_, _, err := Subsample(rows, d, Options{Metric: "loss", Fraction: 0.5})
	assert.Error(t, err)
	_, _, err = Subsample(rows, d, Options{Metric: dynamics.Confidence, Fraction: 0})
	assert.Error(t, err)
	_, _, err = Subsample(rows[:2], d, Options{Metric: dynamics.Confidence, Fraction: 0.5})
	assert.Error(t, err)

	// guids must exist in the dataset
	_, _, err = Subsample(rows, d[:5], Options{Metric: dynamics.Confidence, Worst: true, Fraction: 0.4})
	assert.Error(t, err)
}

func TestOptionsName(t *testing.T) {
	assert.Equal(t, "cartography_variability_0.33", Options{Metric: dynamics.Variability, Fraction: DefaultFraction}.Name())
	assert.Equal(t, "cartography_worst_confidence_0.25", Options{Metric: dynamics.Confidence, Worst: true, Fraction: 0.25}.Name())
	assert.Equal(t, "cartography_both_ends_confidence_0.50", Options{Metric: dynamics.Confidence, BothEnds: true, Fraction: 0.5}.Name())
}

func TestRegimes(t *testing.T) {
	for _, r := range Regimes {
		opts, err := r.Options(0.3)
		require.NoError(t, err)
		back, ok := Of(opts.Metric, opts.Worst)
		assert.True(t, ok)
		assert.Equal(t, r, back)
	}
	_, err := Regime("medium").Options(0.3)
	assert.Error(t, err)
	_, ok := Of(dynamics.Forgetfulness, false)
	assert.False(t, ok)
}

func TestPartition(t *testing.T) {
	rows, _ := fixture()
	p := Partition(rows, 0.3, DefaultConfidenceThreshold)
	assert.Equal(t, []int{104, 105, 106}, p[Ambiguous])
	assert.Equal(t, []int{100, 101, 102, 103}, p[Hard])
	assert.Equal(t, []int{107, 108, 109}, p[Easy])

	all := Partition(rows, 2, DefaultConfidenceThreshold)
	assert.Len(t, all[Ambiguous], 10)
	assert.Empty(t, all[Easy])
}

func TestWriteFiltered(t *testing.T) {
	rows, d := fixture()
	out := t.TempDir()
	val := datasets.Dataset{{GUID: 0, Premise: "v", Hypothesis: "w", Label: 1}}
	written, err := WriteFiltered(logs.Nop(), rows, d, map[string]datasets.Dataset{datasets.Validation: val},
		out, "SNLI", Options{Metric: dynamics.Variability}, []float64{0.2, 0.5})
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, filepath.Join(out, "cartography_variability_0.20", "SNLI", "train.jsonl"), written[0])

	back, err := datasets.LoadJSONL(written[1])
	require.NoError(t, err)
	assert.Len(t, back, 5)
	assert.Equal(t, 105, back[0].GUID)

	back, err = datasets.LoadJSONL(filepath.Join(out, "cartography_variability_0.50", "SNLI", "validation.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, val, back)
}

func TestPlotDataMap(t *testing.T) {
	rows, _ := fixture()
	path := filepath.Join(t.TempDir(), "map.png")
	require.NoError(t, PlotDataMap(path, "SNLI data map", rows, 4))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, st.Size() > 0)

	assert.Error(t, PlotDataMap(path, "empty", nil, 0))
}

func TestWriteFilteredSizesByMetricRows(t *testing.T) {
	rows, d := fixture()
	out := t.TempDir()
	written, err := WriteFiltered(logs.Nop(), rows[:4], d, nil, out, "SNLI",
		Options{Metric: dynamics.Confidence, Worst: true}, []float64{0.5})
	require.NoError(t, err)
	back, err := datasets.LoadJSONL(written[0])
	require.NoError(t, err)
	assert.Equal(t, []int{103, 102}, datasetGUIDs(back))

	// a failing fraction leaves nothing behind
	empty := t.TempDir()
	_, err = WriteFiltered(logs.Nop(), rows, d[:5], nil, empty, "SNLI",
		Options{Metric: dynamics.Confidence, Worst: true}, []float64{0.1, 0.5})
	assert.Error(t, err)
	entries, err := os.ReadDir(empty)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func datasetGUIDs(d datasets.Dataset) (o []int) {
	for _, e := range d {
		o = append(o, e.GUID)
	}
	return
}
