package datasets

import (
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestParseID(t *testing.T) {
	id, err := ParseID("", "nli")
	require.NoError(t, err)
	assert.Equal(t, ID{Name: "snli"}, id)
	assert.Equal(t, Validation, id.EvalSplit())

	id, err = ParseID("glue:mnli", "nli")
	require.NoError(t, err)
	assert.Equal(t, ID{Name: "glue", Config: "mnli"}, id)
	assert.Equal(t, ValidationMatched, id.EvalSplit())
	assert.Equal(t, "glue:mnli", id.String())
	assert.Equal(t, filepath.Join("data", "glue", "mnli", "train.jsonl"), id.SplitPath("data", Train))

	id, err = ParseID("subset/train.jsonl", "nli")
	require.NoError(t, err)
	assert.True(t, id.IsLocal())
	assert.Equal(t, Train, id.EvalSplit())

	_, err = ParseID("", "ner")
	assert.Error(t, err)
	_, err = ParseID(":x", "nli")
	assert.Error(t, err)
}

func TestLoadSNLIDropsUnlabeled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "snli", "train.jsonl"),
		`{"premise": "A man sleeps.", "hypothesis": "A man rests.", "label": 0}
{"premise": "A dog runs.", "hypothesis": "A cat runs.", "label": -1}

{"premise": "Kids play.", "hypothesis": "Nobody plays.", "label": 2}
`)
	d, err := Load(dir, ID{Name: "snli"}, Train)
	require.NoError(t, err)
	require.Len(t, d, 2)
	assert.Equal(t, 0, d[0].GUID)
	assert.Equal(t, 1, d[1].GUID)
	assert.Equal(t, "Kids play.", d[1].Premise)
	assert.Equal(t, Contradiction, d[1].Label)
}

func TestLoadJSONLFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.jsonl")
	writeFile(t, path,
		`{"guid": 17, "premise": "p", "hypothesis": "h", "label": "neutral"}
{"sentence1": "s1", "sentence2": "s2", "gold_label": "contradiction"}
{"premise": "p", "hypothesis": "h"}
`)
	d, err := LoadJSONL(path)
	require.NoError(t, err)
	require.Len(t, d, 3)
	assert.Equal(t, Example{GUID: 17, Premise: "p", Hypothesis: "h", Label: Neutral}, d[0])
	assert.Equal(t, Example{GUID: 1, Premise: "s1", Hypothesis: "s2", Label: Contradiction}, d[1])
	assert.False(t, d[2].Labeled())

	writeFile(t, path, `{"premise": "p", "label": [1]}`)
	_, err = LoadJSONL(path)
	assert.Error(t, err)

	_, err = LoadJSONL(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestLocalDatasetOnlyTrain(t *testing.T) {
	_, err := Load("", ID{Path: "x.jsonl"}, Validation)
	assert.Error(t, err)
}

func TestWriteJSONLRoundTrip(t *testing.T) {
	d := Dataset{
		{GUID: 4, Premise: "a", Hypothesis: "b", Label: Entailment},
		{GUID: 9, Premise: "c", Hypothesis: "d", Label: Neutral},
	}
	path := filepath.Join(t.TempDir(), "out", "train.jsonl")
	require.NoError(t, WriteJSONL(path, d))
	back, err := LoadJSONL(path)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestSelect(t *testing.T) {
	d := Dataset{{GUID: 10}, {GUID: 11}, {GUID: 12}}
	s, err := d.Select([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, Dataset{{GUID: 12}, {GUID: 10}}, s)
	_, err = d.Select([]int{3})
	assert.Error(t, err)

	s, err = d.SelectGUIDs([]int{11})
	require.NoError(t, err)
	assert.Equal(t, Dataset{{GUID: 11}}, s)
	_, err = d.SelectGUIDs([]int{1})
	assert.Error(t, err)

	assert.Len(t, d.Head(2), 2)
	assert.Len(t, d.Head(0), 3)
	assert.Len(t, d.Head(10), 3)
}

func TestOrderIsSeeded(t *testing.T) {
	d := make(Dataset, 50)
	a := d.Order(rand.New(rand.NewSource(3)))
	b := d.Order(rand.New(rand.NewSource(3)))
	assert.Equal(t, a, b)
	assert.ElementsMatch(t, d.Order(nil), a)
}

func TestTally(t *testing.T) {
	var tally Tally
	var wg sync.WaitGroup
	for i := 0; i < 90; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gold := i % NumLabels
			pred := gold
			if i%2 == 0 {
				pred = (gold + 1) % NumLabels
			}
			tally.Add(gold, pred)
		}(i)
	}
	wg.Wait()
	tally.Add(Unlabeled, Entailment)

	assert.Equal(t, 90, tally.Len())
	assert.Equal(t, 1, tally.Skipped())
	overall, perLabel := tally.Accuracy()
	assert.InDelta(t, 0.5, overall, 1e-9)
	for _, a := range perLabel {
		assert.InDelta(t, 0.5, a, 1e-9)
	}
	dist := tally.Distribution()
	assert.InDelta(t, 1.0/3, dist[Neutral], 1e-9)

	assert.Equal(t, 2, TallyOf(Dataset{{Label: 0}, {Label: 2}, {Label: -1}}).Len())
}

func TestCheckTask(t *testing.T) {
	assert.NoError(t, CheckTask(TaskNLI))
	assert.Equal(t, ErrUnsupportedTask, errors.Cause(CheckTask(TaskQA)))
	assert.Error(t, CheckTask("ner"))
}
