package model

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Files of a saved model directory
const (
	ConfigFile  = "config.json"
	WeightsFile = "weights.json.sz"

	// CheckpointPrefix names intermediate checkpoints, followed by the global step
	CheckpointPrefix = "checkpoint-"
)

type weightsJSON struct {
	Bias    []float32   `json:"bias"`
	Weights [][]float32 `json:"weights"`
}

// IsModelDir reports whether path holds a saved model
func IsModelDir(path string) bool {
	st, err := os.Stat(filepath.Join(path, ConfigFile))
	return err == nil && !st.IsDir()
}

// CheckpointDir returns the checkpoint directory of a step under outputDir
func CheckpointDir(outputDir string, step int) string {
	return filepath.Join(outputDir, CheckpointPrefix+strconv.Itoa(step))
}

// StepFromPath parses the global step from a path ending in checkpoint-<step>
func StepFromPath(path string) (int, bool) {
	base := filepath.Base(filepath.Clean(path))
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Save writes config.json and the snappy compressed weights into dir
func (c *Classifier) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating model directory %s", dir)
	}
	cfg, err := json.MarshalIndent(c.Config, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding model config")
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), cfg, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", ConfigFile)
	}
	return c.WriteCompressedWeightsToFile(filepath.Join(dir, WeightsFile))
}

// WriteCompressedWeightsToFile writes model weights to a snappy file
func (c *Classifier) WriteCompressedWeightsToFile(name string) error {
	file, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "creating %s", name)
	}
	w := snappy.NewBufferedWriter(file)
	err = json.NewEncoder(w).Encode(weightsJSON{Bias: c.Bias, Weights: c.Weights})
	if err == nil {
		err = w.Close()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "writing weights %s", name)
}

// ReadCompressedWeightsFromFile reads model weights from a snappy file
func (c *Classifier) ReadCompressedWeightsFromFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return errors.Wrapf(err, "opening %s", name)
	}
	defer file.Close()

	var wj weightsJSON
	if err := json.NewDecoder(bufio.NewReader(snappy.NewReader(file))).Decode(&wj); err != nil {
		return errors.Wrapf(err, "decoding weights %s", name)
	}
	if len(wj.Bias) != len(c.Bias) || len(wj.Weights) != len(c.Weights) {
		return errors.Errorf("weights %s have %d labels, config has %d", name, len(wj.Bias), len(c.Bias))
	}
	for k := range wj.Weights {
		if len(wj.Weights[k]) != len(c.Weights[k]) {
			return errors.Errorf("weights %s have %d buckets, config has %d", name, len(wj.Weights[k]), len(c.Weights[k]))
		}
	}
	c.Bias, c.Weights = wj.Bias, wj.Weights
	return nil
}

// Load reads a model saved with Save
func Load(dir string) (*Classifier, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, errors.Wrapf(err, "reading model config in %s", dir)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding model config in %s", dir)
	}
	if cfg.ModelType != BaseModel {
		return nil, errors.Errorf("unsupported model type %q in %s", cfg.ModelType, dir)
	}
	c, err := New(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "model in %s", dir)
	}
	if err := c.ReadCompressedWeightsFromFile(filepath.Join(dir, WeightsFile)); err != nil {
		return nil, err
	}
	return c, nil
}
