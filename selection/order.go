package selection

import (
	"sort"

	"github.com/neurlang/cartography/dynamics"
	"github.com/pkg/errors"
)

// DefaultFraction is the share of the training set kept by a subset run
const DefaultFraction = 0.3319

// ConsiderAscendingOrder reports the sort order that puts the most valuable
// examples for training first.
func ConsiderAscendingOrder(metric string) (bool, error) {
	switch metric {
	case dynamics.Variability:
		return false, nil
	case dynamics.Confidence:
		return true, nil
	case dynamics.ThresholdCloseness:
		return false, nil
	case dynamics.Forgetfulness:
		return false, nil
	case dynamics.Correctness:
		return true, nil
	}
	return false, errors.Wrapf(dynamics.ErrUnknownMetric, "filtering based on %q not implemented", metric)
}

// Order sorts a copy of rows by metric, most valuable first. worst flips the
// direction. Ties keep the input order.
func Order(rows []dynamics.Metrics, metric string, worst bool) ([]dynamics.Metrics, error) {
	ascending, err := ConsiderAscendingOrder(metric)
	if err != nil {
		return nil, err
	}
	if worst {
		ascending = !ascending
	}
	values := make([]float64, len(rows))
	for i, r := range rows {
		if values[i], err = r.Value(metric); err != nil {
			return nil, err
		}
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if ascending {
			return values[idx[a]] < values[idx[b]]
		}
		return values[idx[a]] > values[idx[b]]
	})
	o := make([]dynamics.Metrics, len(rows))
	for i, j := range idx {
		o[i] = rows[j]
	}
	return o, nil
}
