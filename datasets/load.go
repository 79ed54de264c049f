package datasets

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Split names
const (
	Train             = "train"
	Validation        = "validation"
	ValidationMatched = "validation_matched"
)

// maxLineSize bounds a single JSONL row
const maxLineSize = 16 << 20

// Task names
const (
	TaskNLI = "nli"
	TaskQA  = "qa"
)

// ErrUnsupportedTask is returned for tasks that parse but cannot be trained
var ErrUnsupportedTask = errors.New("unsupported task")

// CheckTask accepts the tasks the classifier can be trained on
func CheckTask(task string) error {
	switch task {
	case TaskNLI:
		return nil
	case TaskQA:
		return errors.Wrapf(ErrUnsupportedTask, "task %q", task)
	}
	return errors.Errorf("unknown task %q", task)
}

// ID identifies a dataset either by a local .json/.jsonl path or by a
// name[:config] pair resolved under a data directory.
type ID struct {
	Path   string
	Name   string
	Config string
}

// ParseID parses the --dataset value. An empty value falls back to the
// default dataset of the task.
func ParseID(value, task string) (ID, error) {
	if strings.HasSuffix(value, ".json") || strings.HasSuffix(value, ".jsonl") {
		return ID{Path: value}, nil
	}
	if value == "" {
		switch task {
		case TaskNLI:
			return ID{Name: "snli"}, nil
		case TaskQA:
			return ID{Name: "squad"}, nil
		}
		return ID{}, errors.Errorf("no default dataset for task %q", task)
	}
	parts := strings.SplitN(value, ":", 2)
	id := ID{Name: parts[0]}
	if len(parts) == 2 {
		id.Config = parts[1]
	}
	if id.Name == "" {
		return ID{}, errors.Errorf("invalid dataset %q", value)
	}
	return id, nil
}

// IsLocal reports whether the dataset is a local file
func (id ID) IsLocal() bool {
	return id.Path != ""
}

// String formats the id the way it is passed on the command line
func (id ID) String() string {
	if id.IsLocal() {
		return id.Path
	}
	if id.Config != "" {
		return id.Name + ":" + id.Config
	}
	return id.Name
}

// EvalSplit returns the split evaluated by default. A local file only has a
// train split; MNLI has matched and mismatched validation splits.
func (id ID) EvalSplit() string {
	switch {
	case id.IsLocal():
		return Train
	case id.Name == "glue" && id.Config == "mnli":
		return ValidationMatched
	}
	return Validation
}

// SplitPath resolves the file holding split under dataDir
func (id ID) SplitPath(dataDir, split string) string {
	if id.IsLocal() {
		return id.Path
	}
	dir := filepath.Join(dataDir, id.Name)
	if id.Config != "" {
		dir = filepath.Join(dir, id.Config)
	}
	return filepath.Join(dir, split+".jsonl")
}

// Load loads split of the dataset. SNLI examples without a gold label are
// removed, and guids of named datasets are positions after that filtering.
func Load(dataDir string, id ID, split string) (Dataset, error) {
	if id.IsLocal() && split != Train {
		return nil, errors.Errorf("local dataset %s only has a %s split, not %s", id.Path, Train, split)
	}
	d, err := LoadJSONL(id.SplitPath(dataDir, split))
	if err != nil {
		return nil, err
	}
	if id.IsLocal() {
		return d, nil
	}
	if id.Name == "snli" && id.Config == "" {
		d = d.Filter(Example.Labeled)
	}
	d.Renumber()
	return d, nil
}

type row struct {
	GUID       *int            `json:"guid"`
	Premise    string          `json:"premise"`
	Hypothesis string          `json:"hypothesis"`
	Sentence1  string          `json:"sentence1"`
	Sentence2  string          `json:"sentence2"`
	Label      json.RawMessage `json:"label"`
	GoldLabel  string          `json:"gold_label"`
}

func (r row) example(line int) (Example, error) {
	e := Example{
		GUID:       line,
		Premise:    r.Premise,
		Hypothesis: r.Hypothesis,
		Label:      Unlabeled,
	}
	if r.GUID != nil {
		e.GUID = *r.GUID
	}
	if e.Premise == "" && e.Hypothesis == "" {
		e.Premise, e.Hypothesis = r.Sentence1, r.Sentence2
	}
	switch {
	case len(r.Label) > 0 && string(r.Label) != "null":
		var n int
		if err := json.Unmarshal(r.Label, &n); err == nil {
			e.Label = n
			break
		}
		var s string
		if err := json.Unmarshal(r.Label, &s); err != nil {
			return e, errors.Errorf("label %s is neither a number nor a name", string(r.Label))
		}
		e.Label, _ = LabelFromName(s)
	case r.GoldLabel != "":
		e.Label, _ = LabelFromName(r.GoldLabel)
	}
	return e, nil
}

// LoadJSONL reads one example per line. Rows may carry the label as an id or
// a name (label / gold_label) and the text as premise/hypothesis or
// sentence1/sentence2. Missing guids default to the row number.
func LoadJSONL(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dataset %s", path)
	}
	defer f.Close()

	var d Dataset
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	var line int
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var r row
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return nil, errors.Wrapf(err, "%s: row %d", path, line)
		}
		e, err := r.example(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: row %d", path, line)
		}
		d = append(d, e)
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading dataset %s", path)
	}
	return d, nil
}

// WriteJSONL writes the dataset one example per line, creating parent
// directories as needed.
func WriteJSONL(path string, d Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range d {
		if err := enc.Encode(e); err != nil {
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
