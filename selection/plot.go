package selection

import (
	"fmt"
	"os"
	"sort"

	"github.com/neurlang/cartography/dynamics"
	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart"
)

// DefaultMaxPlotted bounds the points drawn on a data map
const DefaultMaxPlotted = 25000

// PlotDataMap draws variability against confidence, one series per
// correctness level, into a PNG file. At most maxPoints rows are drawn,
// evenly strided over the input.
func PlotDataMap(path, title string, rows []dynamics.Metrics, maxPoints int) error {
	if len(rows) == 0 {
		return errors.New("no metrics to plot")
	}
	stride := 1
	if maxPoints > 0 && len(rows) > maxPoints {
		stride = (len(rows) + maxPoints - 1) / maxPoints
	}

	xs := make(map[int][]float64)
	ys := make(map[int][]float64)
	maxVariability := 0.0
	for i := 0; i < len(rows); i += stride {
		r := rows[i]
		xs[r.Correctness] = append(xs[r.Correctness], r.Variability)
		ys[r.Correctness] = append(ys[r.Correctness], r.Confidence)
		if r.Variability > maxVariability {
			maxVariability = r.Variability
		}
	}
	levels := make([]int, 0, len(xs))
	for c := range xs {
		levels = append(levels, c)
	}
	sort.Ints(levels)

	var series []chart.Series
	for i, c := range levels {
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("correct %d (n=%d)", c, len(xs[c])),
			XValues: xs[c],
			YValues: ys[c],
			Style: chart.Style{
				Show:        true,
				StrokeWidth: chart.Disabled,
				DotWidth:    2,
				DotColor:    chart.GetAlternateColor(i),
			},
		})
	}
	if maxVariability < 0.5 {
		maxVariability = 0.5
	}

	graph := chart.Chart{
		Title:      title,
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      "variability",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range:     &chart.ContinuousRange{Min: 0, Max: maxVariability},
		},
		YAxis: chart.YAxis{
			Name:      "confidence",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range:     &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating plot %s", path)
	}
	err = graph.Render(chart.PNG, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "rendering plot %s", path)
}
