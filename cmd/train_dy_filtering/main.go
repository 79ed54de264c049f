package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/dynamics"
	"github.com/neurlang/cartography/logs"
	"github.com/neurlang/cartography/selection"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SummaryFile holds the per-epoch training accuracy and loss
const SummaryFile = "td_summary.csv"

type args struct {
	Filter bool `arg:"--filter" help:"write filtered training subsets for every fraction"`
	Plot   bool `arg:"--plot" help:"plot the data map"`

	TaskName string `arg:"--task_name" help:"task the dynamics were recorded on, names output directories"`
	ModelDir string `arg:"--model_dir" help:"training output directory holding training_dynamics/"`
	Model    string `arg:"--model" help:"model name shown in the plot title"`

	Metric    string    `arg:"--metric" help:"metric to order by, or a data map region: easy, ambiguous or hard"`
	Worst     bool      `arg:"--worst" help:"select from the opposite end of the metric ordering"`
	BothEnds  bool      `arg:"--both_ends" help:"select half of each subset from each end of the ordering"`
	Fractions []float64 `arg:"--fractions" help:"subset sizes as shares of the training set"`

	BurnOut   int  `arg:"--burn_out" help:"only use the first this many epochs"`
	IncludeCI bool `arg:"--include_ci" help:"widen variability by its confidence interval"`

	DataDir            string `arg:"--data_dir" help:"directory holding <dataset>/<split>.jsonl"`
	Dataset            string `arg:"--dataset" help:"dataset the dynamics were recorded on (default: lower case task name)"`
	FilteringOutputDir string `arg:"--filtering_output_dir" help:"where filtered subsets are written"`
	PlotsDir           string `arg:"--plots_dir" help:"where the data map is written (default: model_dir)"`
	MaxPlotted         int    `arg:"--max_plotted" help:"most examples drawn on the data map"`

	AmbiguousFraction float64 `arg:"--ambiguous_fraction" help:"share of examples counted as ambiguous in the region summary"`

	CSV     bool `arg:"--csv" help:"also write the metrics as CSV"`
	Verbose bool `arg:"-v,--verbose" help:"debug logging"`
}

func defaultArgs() args {
	return args{
		TaskName:          "SNLI",
		Model:             "hashed-linear",
		DataDir:           "data",
		Fractions:         []float64{0.01, 0.05, 0.10, 0.1667, 0.25, selection.DefaultFraction, 0.50, 0.75},
		MaxPlotted:        selection.DefaultMaxPlotted,
		AmbiguousFraction: selection.DefaultFraction,
	}
}

// Description is shown by --help
func (args) Description() string {
	return "Compute training dynamics metrics, plot the data map and filter training data.\n"
}

// options resolves --metric and --worst, accepting a region name as metric
func (a args) options() (selection.Options, error) {
	opts := selection.Options{Metric: a.Metric, Worst: a.Worst, BothEnds: a.BothEnds}
	if opts.Metric == "" {
		return opts, errors.New("--filter needs --metric")
	}
	for _, r := range selection.Regimes {
		if string(r) == opts.Metric {
			o, err := r.Options(0)
			o.BothEnds = a.BothEnds
			return o, err
		}
	}
	_, err := selection.ConsiderAscendingOrder(opts.Metric)
	return opts, err
}

func (a args) datasetID() (datasets.ID, error) {
	if a.Dataset != "" {
		return datasets.ParseID(a.Dataset, datasets.TaskNLI)
	}
	return datasets.ID{Name: strings.ToLower(a.TaskName)}, nil
}

func main() {
	a := defaultArgs()
	arg.MustParse(&a)

	log := logs.New(a.Verbose)
	if err := run(log, a); err != nil {
		log.Errorw("filtering failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}

func run(log *zap.SugaredLogger, a args) error {
	if a.ModelDir == "" {
		return errors.New("--model_dir is required")
	}
	records, err := dynamics.ReadDir(filepath.Join(a.ModelDir, dynamics.Dir), a.BurnOut)
	if err != nil {
		return err
	}
	rows, summary, err := dynamics.Compute(records, a.IncludeCI)
	if err != nil {
		return err
	}
	log.Infow("computed training dynamics metrics",
		"examples", humanize.Comma(int64(len(rows))), "epochs", len(summary))
	for _, s := range summary {
		log.Debugw("epoch", "epoch", s.Epoch, "accuracy", s.Accuracy, "loss", s.Loss)
	}

	metricsPath := filepath.Join(a.ModelDir, dynamics.MetricsFile(a.BurnOut))
	if err := dynamics.WriteMetrics(metricsPath, rows); err != nil {
		return err
	}
	if a.CSV {
		csvPath := strings.TrimSuffix(metricsPath, ".jsonl") + ".csv"
		if err := dynamics.WriteMetrics(csvPath, rows); err != nil {
			return err
		}
	}
	if err := dynamics.WriteSummary(filepath.Join(a.ModelDir, SummaryFile), summary); err != nil {
		return err
	}
	log.Infow("wrote metrics", "path", metricsPath)

	regions := selection.Partition(rows, a.AmbiguousFraction, selection.DefaultConfidenceThreshold)
	for _, r := range selection.Regimes {
		log.Infow("data map region", "region", r, "examples", humanize.Comma(int64(len(regions[r]))))
	}

	if a.Plot {
		dir := a.PlotsDir
		if dir == "" {
			dir = a.ModelDir
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
		path := filepath.Join(dir, a.TaskName+"_"+filepath.Base(a.Model)+"_data_map.png")
		title := a.TaskName + "-" + a.Model + " Data Map"
		if err := selection.PlotDataMap(path, title, rows, a.MaxPlotted); err != nil {
			return err
		}
		log.Infow("plotted data map", "path", path)
	}

	if a.Filter {
		return filter(log, a, rows)
	}
	return nil
}

func filter(log *zap.SugaredLogger, a args, rows []dynamics.Metrics) error {
	if a.FilteringOutputDir == "" {
		return errors.New("--filter needs --filtering_output_dir")
	}
	opts, err := a.options()
	if err != nil {
		return err
	}
	id, err := a.datasetID()
	if err != nil {
		return err
	}
	train, err := datasets.Load(a.DataDir, id, datasets.Train)
	if err != nil {
		return err
	}
	extra := map[string]datasets.Dataset{}
	if !id.IsLocal() {
		split := id.EvalSplit()
		d, err := datasets.Load(a.DataDir, id, split)
		switch {
		case err == nil:
			extra[split] = d
		case os.IsNotExist(errors.Cause(err)):
			log.Debugw("no evaluation split to copy", "split", split)
		default:
			return err
		}
	}
	_, err = selection.WriteFiltered(log, rows, train, extra, a.FilteringOutputDir, a.TaskName, opts, a.Fractions)
	return err
}
