// Package dataset loads the instances/truth collections and prepares them
// for vectorization: alignment checking, class balancing and shuffling.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickbait-cli/internal/model"
)

// ErrSchema marks a record that is missing a required field.
var ErrSchema = errors.New("dataset: schema error")

// maxLineBytes bounds a single JSONL line; article paragraphs can be long.
const maxLineBytes = 64 << 20

var instanceFields = []string{
	"id",
	"targetTitle",
	"targetDescription",
	"targetKeywords",
	"targetParagraphs",
	"postTimestamp",
	"postMedia",
}

var truthFields = []string{"id", "truthClass"}

// Dataset couples records with their boolean labels. Both slices always
// have the same length and index i of each refers to the same post.
type Dataset struct {
	Records []model.Record
	Labels  []bool
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Records) }

// IDs returns the record ids in row order.
func (d Dataset) IDs() []model.ID {
	ids := make([]model.ID, len(d.Records))
	for i, r := range d.Records {
		ids[i] = r.ID
	}
	return ids
}

// Counts returns the number of positive and negative labels.
func (d Dataset) Counts() (pos, neg int) {
	for _, l := range d.Labels {
		if l {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

// ReadInstances decodes line-delimited instance records.
func ReadInstances(r io.Reader) ([]model.Record, error) {
	var out []model.Record
	err := scanLines(r, func(lineNum int, line []byte) error {
		if err := requireFields(line, instanceFields); err != nil {
			return eris.Wrapf(err, "instances line %d", lineNum)
		}
		var rec model.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return eris.Wrapf(err, "instances line %d: decode", lineNum)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read instances")
	}
	return out, nil
}

// ReadTruth decodes line-delimited truth records.
func ReadTruth(r io.Reader) ([]model.Label, error) {
	var out []model.Label
	err := scanLines(r, func(lineNum int, line []byte) error {
		if err := requireFields(line, truthFields); err != nil {
			return eris.Wrapf(err, "truth line %d", lineNum)
		}
		var l model.Label
		if err := json.Unmarshal(line, &l); err != nil {
			return eris.Wrapf(err, "truth line %d: decode", lineNum)
		}
		out = append(out, l)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read truth")
	}
	return out, nil
}

// Files names the two collections inside a data directory.
type Files struct {
	Dir       string
	Prefix    string
	Instances string
	Truth     string
}

// InstancesPath returns the full path of the instances file.
func (f Files) InstancesPath() string {
	return filepath.Join(f.Dir, f.Prefix+f.Instances)
}

// TruthPath returns the full path of the truth file.
func (f Files) TruthPath() string {
	return filepath.Join(f.Dir, f.Prefix+f.Truth)
}

// LoadInstances reads the instances file only, for unlabelled inference.
func LoadInstances(f Files) ([]model.Record, error) {
	fh, err := os.Open(f.InstancesPath())
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", f.InstancesPath())
	}
	defer fh.Close() //nolint:errcheck
	return ReadInstances(fh)
}

// Load reads both collections from disk.
func Load(f Files) ([]model.Record, []model.Label, error) {
	records, err := LoadInstances(f)
	if err != nil {
		return nil, nil, err
	}

	th, err := os.Open(f.TruthPath())
	if err != nil {
		return nil, nil, eris.Wrapf(err, "dataset: open %s", f.TruthPath())
	}
	defer th.Close() //nolint:errcheck

	labels, err := ReadTruth(th)
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("dataset: loaded",
		zap.String("dir", f.Dir),
		zap.Int("instances", len(records)),
		zap.Int("truth", len(labels)),
	)
	return records, labels, nil
}

// Collapse turns truth records into "is clickbait" booleans.
func Collapse(labels []model.Label) []bool {
	out := make([]bool, len(labels))
	for i, l := range labels {
		out[i] = l.IsClickbait()
	}
	return out
}

func scanLines(r io.Reader, fn func(lineNum int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), maxLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNum, line); err != nil {
			return err
		}
	}
	return eris.Wrap(scanner.Err(), "scan")
}

// requireFields checks that every named key is present in the JSON object.
func requireFields(line []byte, fields []string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return eris.Wrap(err, "decode object")
	}
	id := string(raw["id"])
	for _, f := range fields {
		if _, ok := raw[f]; !ok {
			return eris.Wrapf(ErrSchema, "record %s: missing field %q", id, f)
		}
	}
	return nil
}
