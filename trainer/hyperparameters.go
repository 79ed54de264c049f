package trainer

import (
	"os"

	"github.com/neurlang/cartography/hash"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// HyperParameters configure training and evaluation. They can be read from a
// YAML file and are then overridden by command line flags.
type HyperParameters struct {
	Epochs       int     `yaml:"num_train_epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	L2           float64 `yaml:"l2"`

	TrainBatchSize int `yaml:"per_device_train_batch_size"`
	EvalBatchSize  int `yaml:"per_device_eval_batch_size"`

	Seed         int64 `yaml:"seed"`
	SaveSteps    int   `yaml:"save_steps"`    // checkpoint every this many steps, 0 disables
	LoggingSteps int   `yaml:"logging_steps"` // log the running loss every this many steps

	Threads int `yaml:"threads"` // number of worker goroutines

	Buckets   uint32 `yaml:"buckets"`    // size of the hashed feature space
	MaxLength int    `yaml:"max_length"` // tokens kept per sentence
	Salt      uint32 `yaml:"salt"`       // feature hash salt

	// EvalSignificance evaluates on a statistically sufficient sample
	// instead of the full dataset when set (1-99)
	EvalSignificance byte `yaml:"eval_significance"`

	// Progress shows progress bars on the terminal
	Progress bool `yaml:"progress"`
}

// Defaults returns the default hyperparameters
func Defaults() HyperParameters {
	return HyperParameters{
		Epochs:         3,
		LearningRate:   0.5,
		L2:             1e-6,
		TrainBatchSize: 8,
		EvalBatchSize:  8,
		Seed:           42,
		SaveSteps:      500,
		LoggingSteps:   500,
		Threads:        hash.LogicalCores(),
		MaxLength:      128,
		Buckets:        1 << 18,
		Salt:           1,
	}
}

// LoadHyperParameters reads a YAML file over the defaults
func LoadHyperParameters(path string) (HyperParameters, error) {
	h := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return h, errors.Wrapf(err, "reading hyperparameters %s", path)
	}
	if err := yaml.UnmarshalStrict(raw, &h); err != nil {
		return h, errors.Wrapf(err, "parsing hyperparameters %s", path)
	}
	return h, nil
}

// Validate checks the values can drive a training run
func (h HyperParameters) Validate() error {
	switch {
	case h.Epochs <= 0:
		return errors.Errorf("num_train_epochs must be positive, got %d", h.Epochs)
	case h.LearningRate <= 0:
		return errors.Errorf("learning_rate must be positive, got %v", h.LearningRate)
	case h.L2 < 0:
		return errors.Errorf("l2 must not be negative, got %v", h.L2)
	case h.TrainBatchSize <= 0 || h.EvalBatchSize <= 0:
		return errors.Errorf("batch sizes must be positive, got %d and %d", h.TrainBatchSize, h.EvalBatchSize)
	case h.Buckets == 0:
		return errors.New("buckets must be positive")
	case h.EvalSignificance >= 100:
		return errors.Errorf("eval_significance must be below 100, got %d", h.EvalSignificance)
	}
	return nil
}

func (h HyperParameters) threads() int {
	if h.Threads <= 0 {
		return 1
	}
	return h.Threads
}
