package dynamics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Dir is the directory under a training output directory holding the
// per-epoch dynamics files
const Dir = "training_dynamics"

var epochFileRe = regexp.MustCompile(`^dynamics_epoch_(\d+)\.jsonl$`)

// EpochFile returns the file name of the dynamics of an epoch
func EpochFile(epoch int) string {
	return fmt.Sprintf("dynamics_epoch_%d.jsonl", epoch)
}

// LogitsKey returns the JSON key holding the logits of an epoch
func LogitsKey(epoch int) string {
	return fmt.Sprintf("logits_epoch_%d", epoch)
}

// Row is the observation of one example in one epoch
type Row struct {
	GUID   int
	Gold   int
	Logits []float64
}

// Record gathers the observations of one example across epochs
type Record struct {
	GUID   int
	Gold   int
	Logits [][]float64
}

// WriteEpoch writes the rows of one epoch into dir, one JSON object per line
func WriteEpoch(dir string, epoch int, rows []Row) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating dynamics directory %s", dir)
	}
	path := filepath.Join(dir, EpochFile(epoch))
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	key := LogitsKey(epoch)
	for _, r := range rows {
		if err := enc.Encode(map[string]interface{}{
			"guid": r.GUID,
			"gold": r.Gold,
			key:    r.Logits,
		}); err != nil {
			f.Close()
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}

// Epochs lists the epochs present in dir. Epochs must be numbered from 0
// without gaps.
func Epochs(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "listing dynamics in %s", dir)
	}
	var found []int
	for _, e := range entries {
		m := epochFileRe.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, errors.Wrapf(err, "parsing epoch of %s", e.Name())
		}
		found = append(found, n)
	}
	if len(found) == 0 {
		return 0, errors.Errorf("no dynamics_epoch_*.jsonl files in %s", dir)
	}
	sort.Ints(found)
	for i, n := range found {
		if n != i {
			return 0, errors.Errorf("dynamics in %s are missing epoch %d", dir, i)
		}
	}
	return len(found), nil
}

// ReadDir reads all epochs in dir and merges them by guid. With burnOut > 0
// only the first burnOut epochs are used. Records keep the order of the
// first epoch.
func ReadDir(dir string, burnOut int) ([]Record, error) {
	epochs, err := Epochs(dir)
	if err != nil {
		return nil, err
	}
	if burnOut > 0 && burnOut < epochs {
		epochs = burnOut
	}

	var records []Record
	var index = make(map[int]int)
	for epoch := 0; epoch < epochs; epoch++ {
		rows, err := readEpoch(filepath.Join(dir, EpochFile(epoch)), epoch)
		if err != nil {
			return nil, err
		}
		if epoch == 0 {
			records = make([]Record, len(rows))
			for i, r := range rows {
				if _, dup := index[r.GUID]; dup {
					return nil, errors.Errorf("guid %d appears twice in epoch 0", r.GUID)
				}
				index[r.GUID] = i
				records[i] = Record{GUID: r.GUID, Gold: r.Gold, Logits: make([][]float64, 0, epochs)}
			}
		} else if len(rows) != len(records) {
			return nil, errors.Errorf("epoch %d has %d examples, epoch 0 has %d", epoch, len(rows), len(records))
		}
		for _, r := range rows {
			i, ok := index[r.GUID]
			if !ok {
				return nil, errors.Errorf("guid %d of epoch %d is missing from epoch 0", r.GUID, epoch)
			}
			if records[i].Gold != r.Gold {
				return nil, errors.Errorf("guid %d changes gold label from %d to %d in epoch %d", r.GUID, records[i].Gold, r.Gold, epoch)
			}
			if len(records[i].Logits) != epoch {
				return nil, errors.Errorf("guid %d appears twice in epoch %d", r.GUID, epoch)
			}
			records[i].Logits = append(records[i].Logits, r.Logits)
		}
	}
	return records, nil
}

func readEpoch(path string, epoch int) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	key := LogitsKey(epoch)
	var rows []Row
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	for line := 0; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			return nil, errors.Wrapf(err, "%s: line %d", path, line)
		}
		var r Row
		if err := json.Unmarshal(raw["guid"], &r.GUID); err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: guid", path, line)
		}
		if err := json.Unmarshal(raw["gold"], &r.Gold); err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: gold", path, line)
		}
		logits, ok := raw[key]
		if !ok {
			return nil, errors.Errorf("%s: line %d: missing %s", path, line, key)
		}
		if err := json.Unmarshal(logits, &r.Logits); err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: %s", path, line, key)
		}
		if r.Gold < 0 || r.Gold >= len(r.Logits) {
			return nil, errors.Errorf("%s: line %d: gold %d outside of %d logits", path, line, r.Gold, len(r.Logits))
		}
		rows = append(rows, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return rows, nil
}
