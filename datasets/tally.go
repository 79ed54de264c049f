package datasets

import "sync"

// Tally counts gold labels and correct predictions per label. It is safe for
// concurrent use by evaluation workers.
type Tally struct {
	mut     sync.Mutex
	gold    [NumLabels]int64
	correct [NumLabels]int64
	skipped int64
}

// Add records one prediction for an example with the gold label.
// Examples without a usable label only count as skipped.
func (t *Tally) Add(gold, predicted int) {
	t.mut.Lock()
	defer t.mut.Unlock()
	if gold < 0 || gold >= NumLabels {
		t.skipped++
		return
	}
	t.gold[gold]++
	if gold == predicted {
		t.correct[gold]++
	}
}

// Len returns the number of labeled examples counted
func (t *Tally) Len() (o int) {
	t.mut.Lock()
	for _, n := range t.gold {
		o += int(n)
	}
	t.mut.Unlock()
	return
}

// Skipped returns the number of unlabeled examples seen
func (t *Tally) Skipped() int {
	t.mut.Lock()
	defer t.mut.Unlock()
	return int(t.skipped)
}

// Distribution returns the share of each gold label
func (t *Tally) Distribution() (o [NumLabels]float64) {
	t.mut.Lock()
	defer t.mut.Unlock()
	var total int64
	for _, n := range t.gold {
		total += n
	}
	if total == 0 {
		return
	}
	for i, n := range t.gold {
		o[i] = float64(n) / float64(total)
	}
	return
}

// Accuracy returns the overall accuracy and the accuracy per gold label
func (t *Tally) Accuracy() (overall float64, perLabel [NumLabels]float64) {
	t.mut.Lock()
	defer t.mut.Unlock()
	var total, correct int64
	for i := range t.gold {
		total += t.gold[i]
		correct += t.correct[i]
		if t.gold[i] > 0 {
			perLabel[i] = float64(t.correct[i]) / float64(t.gold[i])
		}
	}
	if total > 0 {
		overall = float64(correct) / float64(total)
	}
	return
}

// TallyOf counts the gold labels of a dataset
func TallyOf(d Dataset) *Tally {
	t := new(Tally)
	for _, e := range d {
		t.Add(e.Label, Unlabeled)
	}
	return t
}
