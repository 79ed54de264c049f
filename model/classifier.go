// Package model implements the hashed-feature softmax classifier and its
// checkpoint format.
package model

import (
	"math"

	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/features"
	"github.com/pkg/errors"
)

// BaseModel is the model name meaning a freshly initialised classifier
const BaseModel = "hashed-linear"

// Config describes the classifier shape; it is stored as config.json
type Config struct {
	ModelType string              `json:"model_type"`
	Labels    []string            `json:"labels"`
	Features  features.Featurizer `json:"features"`
}

// NewConfig returns the configuration for an NLI classifier
func NewConfig(buckets uint32, maxLength int, salt uint32) Config {
	return Config{
		ModelType: BaseModel,
		Labels:    datasets.LabelNames[:],
		Features:  features.New(buckets, maxLength, salt),
	}
}

// Classifier is a multinomial logistic regression over hashed features
type Classifier struct {
	Config  Config
	Weights [][]float32
	Bias    []float32
}

// New allocates a zero initialised classifier
func New(cfg Config) (*Classifier, error) {
	if len(cfg.Labels) < 2 {
		return nil, errors.Errorf("classifier needs at least 2 labels, got %d", len(cfg.Labels))
	}
	if cfg.Features.Buckets == 0 {
		return nil, errors.New("classifier needs a non-empty feature space")
	}
	c := &Classifier{
		Config:  cfg,
		Weights: make([][]float32, len(cfg.Labels)),
		Bias:    make([]float32, len(cfg.Labels)),
	}
	for k := range c.Weights {
		c.Weights[k] = make([]float32, cfg.Features.Buckets)
	}
	return c, nil
}

// NumLabels returns the number of output classes
func (c *Classifier) NumLabels() int {
	return len(c.Bias)
}

// Featurize returns the feature indices of an example
func (c *Classifier) Featurize(e datasets.Example) []uint32 {
	return c.Config.Features.Features(e)
}

// Logits scores every label for the given features
func (c *Classifier) Logits(feats []uint32) []float64 {
	o := make([]float64, len(c.Bias))
	for k := range o {
		s := float64(c.Bias[k])
		w := c.Weights[k]
		for _, f := range feats {
			s += float64(w[f])
		}
		o[k] = s
	}
	return o
}

// Predict returns the most likely label of an example
func (c *Classifier) Predict(e datasets.Example) int {
	return Argmax(c.Logits(c.Featurize(e)))
}

// Update applies one SGD step for an example given d(loss)/d(logits).
// Only the weights of active features are touched; l2 decays them lazily.
func (c *Classifier) Update(feats []uint32, grad []float64, lr, l2 float64) {
	for k, g := range grad {
		w := c.Weights[k]
		step := float32(lr * g)
		for _, f := range feats {
			w[f] -= step + float32(lr*l2)*w[f]
		}
		c.Bias[k] -= step
	}
}

// Softmax converts logits into probabilities
func Softmax(logits []float64) []float64 {
	o := make([]float64, len(logits))
	if len(logits) == 0 {
		return o
	}
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range logits {
		o[i] = math.Exp(v - max)
		sum += o[i]
	}
	for i := range o {
		o[i] /= sum
	}
	return o
}

// Argmax returns the index of the largest value, the first one on ties
func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// CrossEntropy returns -log p(gold), clamped away from infinity
func CrossEntropy(probs []float64, gold int) float64 {
	if gold < 0 || gold >= len(probs) {
		return 0
	}
	p := probs[gold]
	if p < 1e-12 {
		p = 1e-12
	}
	return -math.Log(p)
}
