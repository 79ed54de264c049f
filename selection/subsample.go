package selection

import (
	"fmt"
	"math"

	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/dynamics"
	"github.com/pkg/errors"
)

// Options select a subset
type Options struct {
	Metric   string
	Worst    bool
	BothEnds bool
	Fraction float64
}

// Name describes the subset the way its output directory is named
func (o Options) Name() string {
	prefix := ""
	switch {
	case o.BothEnds:
		prefix = "both_ends_"
	case o.Worst:
		prefix = "worst_"
	}
	return fmt.Sprintf("cartography_%s%s_%.2f", prefix, o.Metric, o.Fraction)
}

// Subset is an ordered selection of example guids
type Subset struct {
	Options
	GUIDs []int
}

// Size returns the number of examples a fraction keeps from n
func Size(fraction float64, n int) int {
	return int(fraction * float64(n))
}

// Select picks int(Fraction * total) guids from the ordered metrics. With
// BothEnds half comes from each end of the ordering.
func Select(rows []dynamics.Metrics, total int, opts Options) (Subset, error) {
	if opts.Fraction <= 0 || opts.Fraction > 1 {
		return Subset{}, errors.Errorf("fraction %v outside of (0, 1]", opts.Fraction)
	}
	sorted, err := Order(rows, opts.Metric, opts.Worst)
	if err != nil {
		return Subset{}, err
	}
	n := Size(opts.Fraction, total)
	if n > len(sorted) {
		return Subset{}, errors.Errorf("subset of %d examples requested, only %d have training dynamics", n, len(sorted))
	}

	var picked []dynamics.Metrics
	if opts.BothEnds {
		head := int(math.Ceil(float64(n) / 2))
		picked = append(picked, sorted[:head]...)
		picked = append(picked, sorted[len(sorted)-(n-head):]...)
	} else {
		picked = sorted[:n]
	}

	s := Subset{Options: opts, GUIDs: make([]int, len(picked))}
	for i, m := range picked {
		s.GUIDs[i] = m.GUID
	}
	return s, nil
}

// Subsample restricts the dataset to the selected subset. Every selected guid
// must exist in the dataset.
func Subsample(rows []dynamics.Metrics, d datasets.Dataset, opts Options) (datasets.Dataset, Subset, error) {
	s, err := Select(rows, d.Len(), opts)
	if err != nil {
		return nil, s, err
	}
	sub, err := d.SelectGUIDs(s.GUIDs)
	if err != nil {
		return nil, s, errors.Wrapf(err, "subset %s", opts.Name())
	}
	return sub, s, nil
}
