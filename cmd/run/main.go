package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/dynamics"
	"github.com/neurlang/cartography/logs"
	"github.com/neurlang/cartography/model"
	"github.com/neurlang/cartography/selection"
	"github.com/neurlang/cartography/trainer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	a := defaultArgs()
	arg.MustParse(&a)

	log := logs.New(a.Verbose)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, log, a)
	stop()
	if err != nil {
		log.Errorw("run failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}

// subsample restricts d to the subset selected from the metrics file
func subsample(log *zap.SugaredLogger, a args, d datasets.Dataset) (datasets.Dataset, error) {
	rows, err := dynamics.ReadMetrics(a.TDMetrics)
	if err != nil {
		return nil, err
	}
	sub, s, err := selection.Subsample(rows, d, a.subsetOptions())
	if err != nil {
		return nil, err
	}
	log.Infow("selected subset", "subset", s.Name(), "examples", humanize.Comma(int64(sub.Len())), "of", humanize.Comma(int64(d.Len())))
	return sub, nil
}

func run(ctx context.Context, log *zap.SugaredLogger, a args) error {
	if err := a.validate(); err != nil {
		return err
	}
	h, err := a.hyperParameters()
	if err != nil {
		return err
	}
	id, err := datasets.ParseID(a.Dataset, a.Task)
	if err != nil {
		return err
	}
	m, err := trainer.Resume(a.Model, h)
	if err != nil {
		return err
	}
	log.Infow("loaded model", "model", a.Model, "buckets", humanize.Comma(int64(m.Config.Features.Buckets)))

	if a.DoTrain {
		train, err := datasets.Load(a.DataDir, id, datasets.Train)
		if err != nil {
			return err
		}
		if a.Subset {
			if train, err = subsample(log, a, train); err != nil {
				return err
			}
		}
		if a.MaxTrainSamples > 0 {
			train = train.Head(a.MaxTrainSamples)
		}
		logDistribution(log, "train", train)
		t := &trainer.Trainer{H: h, Model: m, Log: log, OutputDir: a.OutputDir}
		if _, err := t.Train(ctx, train); err != nil {
			return err
		}
	}

	if a.DoEval {
		split := id.EvalSplit()
		if a.EvalTrain {
			split = datasets.Train
		}
		eval, err := datasets.Load(a.DataDir, id, split)
		if err != nil {
			return err
		}
		if a.Subset {
			if eval, err = subsample(log, a, eval); err != nil {
				return err
			}
		}
		if a.MaxEvalSamples > 0 {
			eval = eval.Head(a.MaxEvalSamples)
		}
		logDistribution(log, split, eval)
		res, err := trainer.Evaluate(ctx, m, eval, h)
		if err != nil {
			return err
		}
		log.Infow("evaluated", "dataset", id.String(), "split", split,
			"examples", humanize.Comma(int64(res.Samples)), "fingerprint", trainer.FormatFingerprint(res.Fingerprint))
		printResults(a.Model, res.Metrics())

		if err := trainer.WriteEvalArtifacts(a.OutputDir, res); err != nil {
			return err
		}
		if a.WriteDynamics {
			if err := writeEvalDynamics(log, a, eval.Head(res.Samples), res); err != nil {
				return err
			}
		}
	}
	return nil
}

func logDistribution(log *zap.SugaredLogger, split string, d datasets.Dataset) {
	tally := datasets.TallyOf(d)
	dist := tally.Distribution()
	kv := []interface{}{"split", split, "labeled", humanize.Comma(int64(tally.Len())), "unlabeled", tally.Skipped()}
	for i, name := range datasets.LabelNames {
		kv = append(kv, name, fmt.Sprintf("%.3f", dist[i]))
	}
	log.Infow("label distribution", kv...)
}

func printResults(name string, metrics map[string]float64) {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("Evaluation results: %s\n", name)
	for _, k := range keys {
		fmt.Printf("  %s = %v\n", k, metrics[k])
	}
}

// writeEvalDynamics stores the evaluation logits as the dynamics of the epoch
// the evaluated checkpoint belongs to
func writeEvalDynamics(log *zap.SugaredLogger, a args, eval datasets.Dataset, res trainer.EvalResult) error {
	if trainer.Discards(a.OutputDir) {
		return errors.New("--write_dynamics needs a real --output_dir")
	}
	step, ok := model.StepFromPath(a.Model)
	if !ok {
		return errors.Errorf("cannot infer a checkpoint step from model %q", a.Model)
	}
	epoch, err := trainer.DynamicsEpoch(step, a.StepsPerEpoch)
	if err != nil {
		return err
	}
	dir := filepath.Join(a.OutputDir, dynamics.Dir)
	if err := trainer.WriteDynamics(dir, epoch, eval, res.Logits); err != nil {
		return err
	}
	log.Infow("wrote evaluation dynamics", "epoch", epoch, "dir", dir)
	return nil
}
