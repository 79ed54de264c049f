package selection

import (
	"sort"

	"github.com/neurlang/cartography/dynamics"
	"github.com/pkg/errors"
)

// Regime is a region of the data map
type Regime string

// Data map regions
const (
	Easy      Regime = "easy"
	Ambiguous Regime = "ambiguous"
	Hard      Regime = "hard"
)

// Regimes lists the regions in display order
var Regimes = []Regime{Easy, Ambiguous, Hard}

// DefaultConfidenceThreshold splits easy from hard examples
const DefaultConfidenceThreshold = 0.5

// Options returns the metric ordering that selects the region first:
// ambiguous examples have the highest variability, hard examples the lowest
// confidence and easy examples the highest confidence.
func (r Regime) Options(fraction float64) (Options, error) {
	switch r {
	case Ambiguous:
		return Options{Metric: dynamics.Variability, Fraction: fraction}, nil
	case Hard:
		return Options{Metric: dynamics.Confidence, Fraction: fraction}, nil
	case Easy:
		return Options{Metric: dynamics.Confidence, Worst: true, Fraction: fraction}, nil
	}
	return Options{}, errors.Errorf("unknown regime %q", string(r))
}

// Of returns the region of the configuration (metric, worst), or false when
// the configuration does not correspond to one.
func Of(metric string, worst bool) (Regime, bool) {
	switch {
	case metric == dynamics.Variability && !worst:
		return Ambiguous, true
	case metric == dynamics.Confidence && !worst:
		return Hard, true
	case metric == dynamics.Confidence && worst:
		return Easy, true
	}
	return "", false
}

// Partition assigns every example to a region. The ambiguousFraction of
// examples with the highest variability are ambiguous; of the rest, examples
// with confidence at or above threshold are easy and the others hard.
func Partition(rows []dynamics.Metrics, ambiguousFraction, threshold float64) map[Regime][]int {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return rows[idx[a]].Variability > rows[idx[b]].Variability
	})
	nAmbiguous := Size(ambiguousFraction, len(rows))
	if nAmbiguous < 0 {
		nAmbiguous = 0
	} else if nAmbiguous > len(rows) {
		nAmbiguous = len(rows)
	}

	out := map[Regime][]int{Easy: {}, Ambiguous: {}, Hard: {}}
	ambiguous := make(map[int]bool, nAmbiguous)
	for _, i := range idx[:nAmbiguous] {
		ambiguous[i] = true
	}
	for i, r := range rows {
		switch {
		case ambiguous[i]:
			out[Ambiguous] = append(out[Ambiguous], r.GUID)
		case r.Confidence >= threshold:
			out[Easy] = append(out[Easy], r.GUID)
		default:
			out[Hard] = append(out[Hard], r.GUID)
		}
	}
	return out
}
