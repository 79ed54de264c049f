package trainer

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/dynamics"
	"github.com/neurlang/cartography/logs"
	"github.com/neurlang/cartography/model"
	"github.com/neurlang/cartography/parallel"
	"github.com/pkg/errors"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"go.uber.org/zap"
)

// StateFile is stored next to every saved model
const StateFile = "trainer_state.json"

// featurizeChunk is the number of examples featurized per work item
const featurizeChunk = 256

// LogEntry is one logged point of the training loss
type LogEntry struct {
	Step         int     `json:"step"`
	Epoch        float64 `json:"epoch"`
	Loss         float64 `json:"loss"`
	LearningRate float64 `json:"learning_rate"`
}

// State is the progress of a training run
type State struct {
	GlobalStep int        `json:"global_step"`
	Epoch      float64    `json:"epoch"`
	LogHistory []LogEntry `json:"log_history"`
}

// Save writes the state into dir
func (s State) Save(dir string) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding trainer state")
	}
	return errors.Wrapf(os.WriteFile(filepath.Join(dir, StateFile), raw, 0644), "writing %s", StateFile)
}

// Trainer fits a classifier with mini-batch SGD and records the training
// dynamics of every example after each epoch.
type Trainer struct {
	H         HyperParameters
	Model     *model.Classifier
	Log       *zap.SugaredLogger
	OutputDir string
}

// StepsPerEpoch returns the number of optimizer steps one epoch over n examples takes
func (t *Trainer) StepsPerEpoch(n int) int {
	return (n + t.H.TrainBatchSize - 1) / t.H.TrainBatchSize
}

func (t *Trainer) log() *zap.SugaredLogger {
	if t.Log == nil {
		return logs.Nop()
	}
	return t.Log
}

// featurize computes the features of every example concurrently
func featurize(ctx context.Context, m *model.Classifier, d datasets.Dataset, threads int) ([][]uint32, error) {
	feats := make([][]uint32, d.Len())
	chunks := parallel.Chunks(d.Len(), featurizeChunk)
	err := parallel.ForEach(ctx, len(chunks), threads, func(c int) error {
		for i := chunks[c][0]; i < chunks[c][1]; i++ {
			feats[i] = m.Featurize(d[i])
		}
		return nil
	})
	return feats, err
}

// steps runs body for every step of an epoch, behind a progress bar when enabled
func (t *Trainer) steps(n int, desc string, body func(i int) error) error {
	if !t.H.Progress {
		for i := 0; i < n; i++ {
			if err := body(i); err != nil {
				return err
			}
		}
		return nil
	}
	var err error
	perr := tqdm.With(iterators.Interval(0, n), desc, func(v interface{}) (brk bool) {
		err = body(v.(int))
		return err != nil
	})
	if err != nil {
		return err
	}
	return perr
}

// Train fits the model on d. Checkpoints are saved every SaveSteps steps,
// dynamics are written after every epoch and the final model is saved into
// the output directory unless it is the discard sentinel.
func (t *Trainer) Train(ctx context.Context, d datasets.Dataset) (State, error) {
	var state State
	if err := t.H.Validate(); err != nil {
		return state, err
	}
	if t.Model == nil {
		return state, errors.New("trainer has no model")
	}
	if d.Len() == 0 {
		return state, errors.New("no training examples")
	}
	log := t.log()
	persist := !Discards(t.OutputDir)

	feats, err := featurize(ctx, t.Model, d, t.H.threads())
	if err != nil {
		return state, errors.Wrap(err, "featurizing training set")
	}

	var (
		rng           = rand.New(rand.NewSource(t.H.Seed))
		stepsPerEpoch = t.StepsPerEpoch(d.Len())
		totalSteps    = stepsPerEpoch * t.H.Epochs
		batch         = t.H.TrainBatchSize
		numLabels     = t.Model.NumLabels()
		runningLoss   float64
		runningCount  int
	)
	log.Infow("training",
		"examples", humanize.Comma(int64(d.Len())),
		"epochs", t.H.Epochs,
		"batch_size", batch,
		"total_steps", humanize.Comma(int64(totalSteps)),
		"threads", t.H.threads())

	for epoch := 0; epoch < t.H.Epochs; epoch++ {
		order := d.Order(rng)
		logits := make([][]float64, d.Len())
		epochLoss, epochCount := 0.0, 0

		err := t.steps(stepsPerEpoch, "Epoch "+humanize.Ordinal(epoch+1), func(s int) error {
			start := s * batch
			end := start + batch
			if end > len(order) {
				end = len(order)
			}
			idx := order[start:end]
			probs := make([][]float64, len(idx))
			err := parallel.ForEach(ctx, len(idx), t.H.threads(), func(j int) error {
				l := t.Model.Logits(feats[idx[j]])
				logits[idx[j]] = l
				probs[j] = model.Softmax(l)
				return nil
			})
			if err != nil {
				return err
			}

			lr := t.H.LearningRate * (1 - float64(state.GlobalStep)/float64(totalSteps))
			grad := make([]float64, numLabels)
			for j, i := range idx {
				gold := d[i].Label
				if gold < 0 || gold >= numLabels {
					continue
				}
				loss := model.CrossEntropy(probs[j], gold)
				runningLoss += loss
				runningCount++
				epochLoss += loss
				epochCount++
				for k := range grad {
					grad[k] = probs[j][k] / float64(len(idx))
				}
				grad[gold] -= 1 / float64(len(idx))
				t.Model.Update(feats[i], grad, lr, t.H.L2)
			}
			state.GlobalStep++
			state.Epoch = float64(state.GlobalStep) / float64(stepsPerEpoch)

			if t.H.LoggingSteps > 0 && state.GlobalStep%t.H.LoggingSteps == 0 && runningCount > 0 {
				entry := LogEntry{
					Step:         state.GlobalStep,
					Epoch:        state.Epoch,
					Loss:         runningLoss / float64(runningCount),
					LearningRate: lr,
				}
				state.LogHistory = append(state.LogHistory, entry)
				log.Infow("step", "step", entry.Step, "epoch", entry.Epoch, "loss", entry.Loss, "learning_rate", entry.LearningRate)
				runningLoss, runningCount = 0, 0
			}
			if persist && t.H.SaveSteps > 0 && state.GlobalStep%t.H.SaveSteps == 0 {
				if err := t.save(model.CheckpointDir(t.OutputDir, state.GlobalStep), state); err != nil {
					return err
				}
				log.Infow("saved checkpoint", "step", state.GlobalStep)
			}
			return nil
		})
		if err != nil {
			return state, errors.Wrapf(err, "training epoch %d", epoch)
		}

		if epochCount > 0 {
			log.Infow("epoch done", "epoch", epoch, "loss", epochLoss/float64(epochCount))
		}
		if persist {
			dir := filepath.Join(t.OutputDir, dynamics.Dir)
			if err := WriteDynamics(dir, epoch, d, logits); err != nil {
				return state, err
			}
			log.Debugw("wrote training dynamics", "epoch", epoch, "dir", dir)
		}
	}

	if persist {
		if err := t.save(t.OutputDir, state); err != nil {
			return state, err
		}
		log.Infow("saved model", "dir", t.OutputDir)
	}
	return state, nil
}

func (t *Trainer) save(dir string, state State) error {
	if err := t.Model.Save(dir); err != nil {
		return err
	}
	return state.Save(dir)
}

// WriteDynamics stores the logits of every labeled example of d, in dataset
// order, as the dynamics file of the epoch.
func WriteDynamics(dir string, epoch int, d datasets.Dataset, logits [][]float64) error {
	if len(logits) != d.Len() {
		return errors.Errorf("have logits for %d of %d examples", len(logits), d.Len())
	}
	rows := make([]dynamics.Row, 0, d.Len())
	for i, e := range d {
		if !e.Labeled() {
			continue
		}
		if logits[i] == nil {
			return errors.Errorf("example %d has no logits", e.GUID)
		}
		rows = append(rows, dynamics.Row{GUID: e.GUID, Gold: e.Label, Logits: logits[i]})
	}
	return dynamics.WriteEpoch(dir, epoch, rows)
}

// DynamicsEpoch returns the epoch index a checkpoint step corresponds to
func DynamicsEpoch(step, stepsPerEpoch int) (int, error) {
	if stepsPerEpoch <= 0 {
		return 0, errors.Errorf("steps per epoch must be positive, got %d", stepsPerEpoch)
	}
	idx := step/stepsPerEpoch - 1
	if idx < 0 {
		return 0, errors.Errorf("step %d is before the end of the first epoch (%d steps)", step, stepsPerEpoch)
	}
	return idx, nil
}
