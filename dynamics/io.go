package dynamics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// MetricsFile returns the name of the metrics file, marking burnt out runs
func MetricsFile(burnOut int) string {
	if burnOut > 0 {
		return fmt.Sprintf("td_metrics_burn_out_%d.jsonl", burnOut)
	}
	return "td_metrics.jsonl"
}

// WriteMetrics writes metric rows as JSONL, or as CSV when path ends in .csv
func WriteMetrics(path string, rows []Metrics) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if strings.HasSuffix(path, ".csv") {
		err = gocsv.Marshal(&rows, f)
	} else {
		w := bufio.NewWriter(f)
		enc := json.NewEncoder(w)
		for _, r := range rows {
			if err = enc.Encode(r); err != nil {
				break
			}
		}
		if err == nil {
			err = w.Flush()
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "writing metrics %s", path)
}

// ReadMetrics reads metric rows written by WriteMetrics
func ReadMetrics(path string) ([]Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening metrics %s", path)
	}
	defer f.Close()

	var rows []Metrics
	if strings.HasSuffix(path, ".csv") {
		if err := gocsv.UnmarshalFile(f, &rows); err != nil {
			return nil, errors.Wrapf(err, "reading metrics %s", path)
		}
		return rows, nil
	}
	scanner := bufio.NewScanner(f)
	for line := 0; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var m Metrics
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			return nil, errors.Wrapf(err, "%s: line %d", path, line)
		}
		rows = append(rows, m)
	}
	return rows, errors.Wrapf(scanner.Err(), "reading metrics %s", path)
}

// WriteSummary writes the per-epoch summary as CSV
func WriteSummary(path string, rows []EpochSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	err = gocsv.Marshal(&rows, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "writing summary %s", path)
}
