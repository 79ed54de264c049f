package main

import (
	"path/filepath"

	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/dynamics"
	"github.com/neurlang/cartography/model"
	"github.com/neurlang/cartography/selection"
	"github.com/neurlang/cartography/trainer"
	"github.com/pkg/errors"
)

// defaultStepsPerEpoch converts a checkpoint step into a dynamics epoch
const defaultStepsPerEpoch = 1500

type args struct {
	DoTrain   bool   `arg:"--do_train" help:"train the model on the train split"`
	DoEval    bool   `arg:"--do_eval" help:"evaluate the trained or loaded model"`
	Task      string `arg:"--task" help:"task to train or evaluate on: nli or qa"`
	Dataset   string `arg:"--dataset" help:"name[:config] under --data_dir or a local .json/.jsonl file; defaults to snli for nli"`
	DataDir   string `arg:"--data_dir" help:"directory holding named datasets as <name>[/<config>]/<split>.jsonl"`
	OutputDir string `arg:"--output_dir" help:"where checkpoints, the final model and eval predictions are written; /dev/null or - discards them"`
	Model     string `arg:"--model" help:"base model name or a saved model directory"`
	Config    string `arg:"--config" help:"YAML hyperparameter file, overridden by flags"`

	TrainBatchSize   *int     `arg:"--per_device_train_batch_size" help:"training batch size (default 8)"`
	EvalBatchSize    *int     `arg:"--per_device_eval_batch_size" help:"evaluation batch size (default 8)"`
	Epochs           *int     `arg:"--num_train_epochs" help:"passes over the training data (default 3)"`
	LearningRate     *float64 `arg:"--learning_rate" help:"initial learning rate, decayed linearly (default 0.5)"`
	Seed             *int64   `arg:"--seed" help:"shuffle seed (default 42)"`
	SaveSteps        *int     `arg:"--save_steps" help:"save a checkpoint every this many steps (default 500)"`
	LoggingSteps     *int     `arg:"--logging_steps" help:"log the loss every this many steps (default 500)"`
	MaxLength        *int     `arg:"--max_length" help:"tokens kept per sentence (default 128)"`
	Threads          *int     `arg:"--threads" help:"worker goroutines (default: logical CPUs)"`
	EvalSignificance *int     `arg:"--eval_significance" help:"evaluate on a sample sufficient for this significance level (1-99)"`

	MaxTrainSamples int `arg:"--max_train_samples" help:"limit the number of examples to train on"`
	MaxEvalSamples  int `arg:"--max_eval_samples" help:"limit the number of examples to evaluate on"`

	EvalTrain      bool    `arg:"--eval_train" help:"evaluate on the train split instead of the validation split"`
	Subset         bool    `arg:"--subset" help:"restrict training and evaluation to a subset selected by --metric"`
	Metric         string  `arg:"--metric" help:"metric to select the subset by: confidence, variability, correctness, forgetfulness or threshold_closeness"`
	Worst          bool    `arg:"--worst" help:"select from the opposite end of the metric ordering"`
	BothEnds       bool    `arg:"--both_ends" help:"select half of the subset from each end of the ordering"`
	SubsetFraction float64 `arg:"--subset_fraction" help:"share of the dataset kept in the subset"`
	TDMetrics      string  `arg:"--td_metrics" help:"training dynamics metrics file (.jsonl or .csv)"`

	WriteDynamics bool `arg:"--write_dynamics" help:"write the eval logits as the dynamics of the epoch implied by the checkpoint step"`
	StepsPerEpoch int  `arg:"--steps_per_epoch" help:"optimizer steps per epoch used to map a checkpoint to its epoch"`

	Progress bool `arg:"--progress" help:"show progress bars"`
	Verbose  bool `arg:"-v,--verbose" help:"debug logging"`
}

func defaultArgs() args {
	return args{
		Task:           datasets.TaskNLI,
		DataDir:        "data",
		Model:          model.BaseModel,
		SubsetFraction: selection.DefaultFraction,
		TDMetrics:      filepath.Join("resources", dynamics.MetricsFile(0)),
		StepsPerEpoch:  defaultStepsPerEpoch,
	}
}

// Description is shown by --help
func (args) Description() string {
	return "Train and evaluate the hashed-feature NLI classifier.\n"
}

// validate checks flag combinations
func (a args) validate() error {
	if err := datasets.CheckTask(a.Task); err != nil {
		return err
	}
	if !a.DoTrain && !a.DoEval {
		return errors.New("nothing to do, pass --do_train and/or --do_eval")
	}
	if a.OutputDir == "" {
		return errors.New("--output_dir is required")
	}
	if a.Subset {
		if a.Metric == "" {
			return errors.New("--subset needs --metric")
		}
		if _, err := selection.ConsiderAscendingOrder(a.Metric); err != nil {
			return err
		}
	}
	if a.WriteDynamics && !a.DoEval {
		return errors.New("--write_dynamics needs --do_eval")
	}
	return nil
}

// subsetOptions returns the selection requested by the flags
func (a args) subsetOptions() selection.Options {
	return selection.Options{
		Metric:   a.Metric,
		Worst:    a.Worst,
		BothEnds: a.BothEnds,
		Fraction: a.SubsetFraction,
	}
}

// hyperParameters starts from the defaults or the --config file and applies
// every flag given on the command line
func (a args) hyperParameters() (trainer.HyperParameters, error) {
	h := trainer.Defaults()
	if a.Config != "" {
		var err error
		if h, err = trainer.LoadHyperParameters(a.Config); err != nil {
			return h, err
		}
	}
	if a.TrainBatchSize != nil {
		h.TrainBatchSize = *a.TrainBatchSize
	}
	if a.EvalBatchSize != nil {
		h.EvalBatchSize = *a.EvalBatchSize
	}
	if a.Epochs != nil {
		h.Epochs = *a.Epochs
	}
	if a.LearningRate != nil {
		h.LearningRate = *a.LearningRate
	}
	if a.Seed != nil {
		h.Seed = *a.Seed
	}
	if a.SaveSteps != nil {
		h.SaveSteps = *a.SaveSteps
	}
	if a.LoggingSteps != nil {
		h.LoggingSteps = *a.LoggingSteps
	}
	if a.MaxLength != nil {
		h.MaxLength = *a.MaxLength
	}
	if a.Threads != nil {
		h.Threads = *a.Threads
	}
	if a.EvalSignificance != nil {
		if *a.EvalSignificance < 0 || *a.EvalSignificance > 99 {
			return h, errors.Errorf("--eval_significance must be within 0-99, got %d", *a.EvalSignificance)
		}
		h.EvalSignificance = byte(*a.EvalSignificance)
	}
	if a.Progress {
		h.Progress = true
	}
	return h, h.Validate()
}
