package selection

import (
	"path/filepath"

	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/dynamics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FilteredDir returns the directory a subset of task is written to
func FilteredDir(outDir, task string, opts Options) string {
	return filepath.Join(outDir, opts.Name(), task)
}

// WriteFiltered selects one subset per fraction and writes it as
// <outDir>/<subset name>/<task>/train.jsonl. Subset sizes are fractions of
// the examples that have metrics, which may be fewer than the train split.
// Extra splits, typically the validation split, are copied next to it so the
// directory can be trained on directly. All subsets are selected before
// anything is written. It returns the written train files.
func WriteFiltered(log *zap.SugaredLogger, rows []dynamics.Metrics, train datasets.Dataset, extra map[string]datasets.Dataset,
	outDir, task string, base Options, fractions []float64) ([]string, error) {

	subsets := make([]datasets.Dataset, len(fractions))
	options := make([]Options, len(fractions))
	for i, fraction := range fractions {
		opts := base
		opts.Fraction = fraction
		s, err := Select(rows, len(rows), opts)
		if err != nil {
			return nil, err
		}
		sub, err := train.SelectGUIDs(s.GUIDs)
		if err != nil {
			return nil, errors.Wrapf(err, "subset %s", opts.Name())
		}
		subsets[i], options[i] = sub, opts
	}

	var written []string
	for i, opts := range options {
		dir := FilteredDir(outDir, task, opts)
		path := filepath.Join(dir, datasets.Train+".jsonl")
		if err := datasets.WriteJSONL(path, subsets[i]); err != nil {
			return written, errors.Wrapf(err, "writing subset %s", opts.Name())
		}
		for split, d := range extra {
			if err := datasets.WriteJSONL(filepath.Join(dir, split+".jsonl"), d); err != nil {
				return written, errors.Wrapf(err, "copying %s split", split)
			}
		}
		log.Infow("wrote filtered subset", "subset", opts.Name(), "examples", subsets[i].Len(), "path", path)
		written = append(written, path)
	}
	return written, nil
}
