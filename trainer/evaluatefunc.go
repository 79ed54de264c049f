package trainer

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/model"
	"github.com/neurlang/cartography/parallel"
	"github.com/pkg/errors"
)

// Artifacts written by an evaluation
const (
	MetricsFile     = "eval_metrics.json"
	PredictionsFile = "eval_predictions.jsonl"
)

// sampleSize calculates the statistically sufficient sample size
// for a given dataset size N and significance level (0–100).
func sampleSize(N int, significance byte) int {
	if N <= 1 {
		return N
	}
	z := zScoreFromAlpha(100 - significance)

	// worst-case proportion p = 0.5 for max variability
	p := 0.5
	e := float64(100-significance) * 0.01

	ss := math.Pow(z, 2) * p * (1 - p) / math.Pow(e, 2)

	// finite population correction
	correctedSS := ss * float64(N) / (float64(N) - 1 + ss)

	if int(correctedSS) > N {
		return N
	}
	return int(correctedSS)
}

// zScoreFromAlpha returns the Z-score for a given alpha level
// Common: 90% => 1.645, 95% => 1.96, 99% => 2.576
func zScoreFromAlpha(alpha byte) float64 {
	switch {
	case alpha <= 1:
		return 2.576
	case alpha <= 5:
		return 1.96
	case alpha <= 10:
		return 1.645
	default:
		return 1.96
	}
}

// Prediction is the model output for one evaluated example
type Prediction struct {
	datasets.Example
	PredictedScores []float64 `json:"predicted_scores"`
	PredictedLabel  int       `json:"predicted_label"`
}

// EvalResult holds the outcome of an evaluation
type EvalResult struct {
	Accuracy    float64
	Loss        float64
	Samples     int
	PerLabel    [datasets.NumLabels]float64
	Predictions []Prediction
	Logits      [][]float64

	// Fingerprint hashes the predicted labels in dataset order
	Fingerprint [32]byte
}

// Metrics returns the result keyed the way evaluation metrics are reported
func (r EvalResult) Metrics() map[string]float64 {
	m := map[string]float64{
		"eval_accuracy": r.Accuracy,
		"eval_loss":     r.Loss,
		"eval_samples":  float64(r.Samples),
	}
	for i, name := range datasets.LabelNames {
		m["eval_accuracy_"+name] = r.PerLabel[i]
	}
	return m
}

// ComputeAccuracy returns the share of labeled examples whose prediction
// equals their label. Unlabeled examples are skipped.
func ComputeAccuracy(predictions, labels []int) (float64, error) {
	if len(predictions) != len(labels) {
		return 0, errors.Errorf("have %d predictions for %d labels", len(predictions), len(labels))
	}
	var correct, total int
	for i, label := range labels {
		if label < 0 {
			continue
		}
		total++
		if predictions[i] == label {
			correct++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}

// Evaluate scores every example of d. Accuracy and loss are computed over
// labeled examples. With h.EvalSignificance set only a statistically
// sufficient prefix of d is evaluated.
func Evaluate(ctx context.Context, m *model.Classifier, d datasets.Dataset, h HyperParameters) (EvalResult, error) {
	if h.EvalSignificance > 0 && h.EvalSignificance < 100 {
		d = d.Head(sampleSize(d.Len(), h.EvalSignificance))
	}
	batch := h.EvalBatchSize
	if batch <= 0 {
		batch = 1
	}

	var (
		res = EvalResult{
			Samples:     d.Len(),
			Predictions: make([]Prediction, d.Len()),
			Logits:      make([][]float64, d.Len()),
		}
		tally   datasets.Tally
		preds   = make([]int, d.Len())
		hasher  = parallel.NewUint16Hasher(d.Len())
		lossMut sync.Mutex
		loss    float64
	)

	chunks := parallel.Chunks(d.Len(), batch)
	err := parallel.ForEach(ctx, len(chunks), h.threads(), func(c int) error {
		var chunkLoss float64
		for i := chunks[c][0]; i < chunks[c][1]; i++ {
			e := d[i]
			logits := m.Logits(m.Featurize(e))
			probs := model.Softmax(logits)
			pred := model.Argmax(probs)

			res.Logits[i] = logits
			preds[i] = pred
			res.Predictions[i] = Prediction{Example: e, PredictedScores: logits, PredictedLabel: pred}
			hasher.MustPutUint16(i, uint16(pred))
			tally.Add(e.Label, pred)
			if e.Labeled() {
				chunkLoss += model.CrossEntropy(probs, e.Label)
			}
		}
		lossMut.Lock()
		loss += chunkLoss
		lossMut.Unlock()
		return nil
	})
	if err != nil {
		return res, errors.Wrap(err, "evaluation interrupted")
	}

	_, res.PerLabel = tally.Accuracy()
	if res.Accuracy, err = ComputeAccuracy(preds, d.Labels()); err != nil {
		return res, err
	}
	if n := tally.Len(); n > 0 {
		res.Loss = loss / float64(n)
	}
	res.Fingerprint = hasher.Sum()
	return res, nil
}

// Discards reports whether outputDir is the sentinel for throwing artifacts away
func Discards(outputDir string) bool {
	return outputDir == "" || outputDir == "-" || filepath.Clean(outputDir) == os.DevNull
}

// WriteEvalArtifacts stores eval_metrics.json and eval_predictions.jsonl in
// outputDir unless it is the discard sentinel.
func WriteEvalArtifacts(outputDir string, res EvalResult) error {
	if Discards(outputDir) {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", outputDir)
	}
	raw, err := json.MarshalIndent(res.Metrics(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding metrics")
	}
	if err := os.WriteFile(filepath.Join(outputDir, MetricsFile), raw, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", MetricsFile)
	}

	path := filepath.Join(outputDir, PredictionsFile)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, p := range res.Predictions {
		if err = enc.Encode(p); err != nil {
			break
		}
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "writing %s", path)
}

// FormatFingerprint renders a fingerprint the way it is logged
func FormatFingerprint(f [32]byte) string {
	return hex.EncodeToString(f[:8])
}
