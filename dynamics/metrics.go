package dynamics

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/neurlang/cartography/model"
	"github.com/pkg/errors"
)

// Metric names accepted by --metric
const (
	Confidence         = "confidence"
	Variability        = "variability"
	Correctness        = "correctness"
	Forgetfulness      = "forgetfulness"
	ThresholdCloseness = "threshold_closeness"
)

// MetricNames lists the metrics in the order they are documented
var MetricNames = []string{ThresholdCloseness, Confidence, Variability, Correctness, Forgetfulness}

// ErrUnknownMetric is returned for metric names outside MetricNames
var ErrUnknownMetric = errors.New("unknown metric")

// NeverLearned is the forgetfulness of examples never predicted correctly
const NeverLearned = 1000

// Metrics are the data map coordinates of one example
type Metrics struct {
	GUID               int     `json:"guid" csv:"guid"`
	Index              int     `json:"index" csv:"index"`
	Confidence         float64 `json:"confidence" csv:"confidence"`
	Variability        float64 `json:"variability" csv:"variability"`
	Correctness        int     `json:"correctness" csv:"correctness"`
	Forgetfulness      int     `json:"forgetfulness" csv:"forgetfulness"`
	ThresholdCloseness float64 `json:"threshold_closeness" csv:"threshold_closeness"`
}

// Value returns the named metric
func (m Metrics) Value(metric string) (float64, error) {
	switch metric {
	case Confidence:
		return m.Confidence, nil
	case Variability:
		return m.Variability, nil
	case Correctness:
		return float64(m.Correctness), nil
	case Forgetfulness:
		return float64(m.Forgetfulness), nil
	case ThresholdCloseness:
		return m.ThresholdCloseness, nil
	}
	return 0, errors.Wrapf(ErrUnknownMetric, "%q", metric)
}

// EpochSummary aggregates one epoch over all examples
type EpochSummary struct {
	Epoch    int     `json:"epoch" csv:"epoch"`
	Accuracy float64 `json:"accuracy" csv:"accuracy"`
	Loss     float64 `json:"loss" csv:"loss"`
}

// ForgetfulnessOf counts how often an example went from learned (predicted
// correctly) to forgotten. Examples never learned get NeverLearned.
func ForgetfulnessOf(trend []bool) int {
	learned := false
	forgotten := 0
	everLearned := false
	for _, correct := range trend {
		switch {
		case correct && !learned:
			learned = true
			everLearned = true
		case !correct && learned:
			learned = false
			forgotten++
		}
	}
	if !everLearned {
		return NeverLearned
	}
	return forgotten
}

// VariabilityOf is the population standard deviation of the gold label
// probabilities. With includeCI the variance is widened by var²/(n-1).
func VariabilityOf(probs []float64, includeCI bool) (float64, error) {
	variance, err := stats.PopulationVariance(stats.Float64Data(probs))
	if err != nil {
		return 0, err
	}
	if includeCI && len(probs) > 1 {
		variance += variance * variance / float64(len(probs)-1)
	}
	return math.Sqrt(variance), nil
}

// Compute derives the metrics of every record and the per-epoch summary.
func Compute(records []Record, includeCI bool) ([]Metrics, []EpochSummary, error) {
	if len(records) == 0 {
		return nil, nil, errors.New("no training dynamics to compute metrics from")
	}
	epochs := len(records[0].Logits)
	if epochs == 0 {
		return nil, nil, errors.New("training dynamics have no epochs")
	}
	correctPerEpoch := make([]int, epochs)
	lossPerEpoch := make([]float64, epochs)

	out := make([]Metrics, len(records))
	probs := make([]float64, epochs)
	trend := make([]bool, epochs)
	for i, r := range records {
		if len(r.Logits) != epochs {
			return nil, nil, errors.Errorf("guid %d has %d epochs, expected %d", r.GUID, len(r.Logits), epochs)
		}
		correct := 0
		for e, logits := range r.Logits {
			p := model.Softmax(logits)
			probs[e] = p[r.Gold]
			trend[e] = model.Argmax(p) == r.Gold
			if trend[e] {
				correct++
				correctPerEpoch[e]++
			}
			lossPerEpoch[e] += model.CrossEntropy(p, r.Gold)
		}
		confidence, err := stats.Mean(stats.Float64Data(probs))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "confidence of guid %d", r.GUID)
		}
		variability, err := VariabilityOf(probs, includeCI)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "variability of guid %d", r.GUID)
		}
		out[i] = Metrics{
			GUID:               r.GUID,
			Index:              i,
			Confidence:         confidence,
			Variability:        variability,
			Correctness:        correct,
			Forgetfulness:      ForgetfulnessOf(trend),
			ThresholdCloseness: confidence * (1 - confidence),
		}
	}

	summary := make([]EpochSummary, epochs)
	for e := range summary {
		summary[e] = EpochSummary{
			Epoch:    e,
			Accuracy: float64(correctPerEpoch[e]) / float64(len(records)),
			Loss:     lossPerEpoch[e] / float64(len(records)),
		}
	}
	return out, summary, nil
}
