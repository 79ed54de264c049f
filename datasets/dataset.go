// Package datasets implements the NLI example and dataset types
package datasets

import (
	"math/rand"

	"github.com/pkg/errors"
)

// NLI labels. Label order matches the classifier output order.
const (
	Entailment    = 0
	Neutral       = 1
	Contradiction = 2

	// Unlabeled marks examples without a gold label (SNLI uses -1)
	Unlabeled = -1

	NumLabels = 3
)

// LabelNames maps label ids to their names
var LabelNames = [NumLabels]string{"entailment", "neutral", "contradiction"}

// LabelFromName parses a label name, reporting false for unknown names
func LabelFromName(name string) (int, bool) {
	for i, n := range LabelNames {
		if n == name {
			return i, true
		}
	}
	return Unlabeled, false
}

// Example is a single premise / hypothesis pair with its gold label
type Example struct {
	GUID       int    `json:"guid"`
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
	Label      int    `json:"label"`
}

// Labeled reports whether the example carries a usable gold label
func (e Example) Labeled() bool {
	return e.Label >= 0 && e.Label < NumLabels
}

// Dataset is an ordered list of examples
type Dataset []Example

// Len returns the number of examples
func (d Dataset) Len() int {
	return len(d)
}

// Labels returns the gold labels in order
func (d Dataset) Labels() []int {
	o := make([]int, len(d))
	for i := range d {
		o[i] = d[i].Label
	}
	return o
}

// Select returns the examples at the given positions, in the given order
func (d Dataset) Select(indices []int) (Dataset, error) {
	o := make(Dataset, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(d) {
			return nil, errors.Errorf("index %d out of range for dataset of %d examples", i, len(d))
		}
		o = append(o, d[i])
	}
	return o, nil
}

// SelectGUIDs returns the examples with the given guids, in the given order
func (d Dataset) SelectGUIDs(guids []int) (Dataset, error) {
	index := d.Index()
	o := make(Dataset, 0, len(guids))
	for _, g := range guids {
		i, ok := index[g]
		if !ok {
			return nil, errors.Errorf("guid %d does not exist in the dataset", g)
		}
		o = append(o, d[i])
	}
	return o, nil
}

// Index maps guid to position
func (d Dataset) Index() map[int]int {
	m := make(map[int]int, len(d))
	for i := range d {
		m[d[i].GUID] = i
	}
	return m
}

// Filter keeps the examples for which keep reports true
func (d Dataset) Filter(keep func(Example) bool) Dataset {
	o := make(Dataset, 0, len(d))
	for _, e := range d {
		if keep(e) {
			o = append(o, e)
		}
	}
	return o
}

// Head returns at most the first n examples. n <= 0 keeps everything.
func (d Dataset) Head(n int) Dataset {
	if n <= 0 || n >= len(d) {
		return d
	}
	return d[:n]
}

// Renumber assigns guids equal to positions
func (d Dataset) Renumber() {
	for i := range d {
		d[i].GUID = i
	}
}

// Order returns the positions 0..len-1 shuffled with the seeded generator
func (d Dataset) Order(rng *rand.Rand) []int {
	o := make([]int, len(d))
	for i := range o {
		o[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(o), func(i, j int) { o[i], o[j] = o[j], o[i] })
	}
	return o
}
