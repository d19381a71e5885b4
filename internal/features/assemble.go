// Package features turns records into the sparse feature matrix consumed by
// the classifier.
//
// Column layout, in this fixed order:
//
//	targetTitle n-grams | targetDescription n-grams | targetKeywords n-grams |
//	hour one-hot (24) | weekday one-hot (7) |
//	paragraph count | has no media | paragraph word count
//
// Anything that reads the matrix depends on this order, so fit and apply
// calls must assemble identically.
package features

import (
	"maps"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/clickbait-cli/internal/model"
)

// Text field names, matching the instance JSON keys.
const (
	FieldTitle       = "targetTitle"
	FieldDescription = "targetDescription"
	FieldKeywords    = "targetKeywords"
)

// TextFields lists the vectorized text fields in column order.
var TextFields = []string{FieldTitle, FieldDescription, FieldKeywords}

// ScalarColumns is the number of trailing scalar feature columns.
const ScalarColumns = 3

// Vocabularies holds one vocabulary per text field.
type Vocabularies map[string]Vocabulary

// Sizes returns the vocabulary size per field.
func (v Vocabularies) Sizes() map[string]int {
	out := make(map[string]int, len(v))
	for f, voc := range v {
		out[f] = len(voc)
	}
	return out
}

// Block names a contiguous column range [Start, End).
type Block struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Layout returns the column ranges for a matrix assembled with vocabs.
// Fields without a vocabulary get an empty range.
func Layout(vocabs Vocabularies) []Block {
	var blocks []Block
	offset := 0
	add := func(name string, width int) {
		blocks = append(blocks, Block{Name: name, Start: offset, End: offset + width})
		offset += width
	}
	for _, f := range TextFields {
		add(f, len(vocabs[f]))
	}
	add("postHour", HourColumns)
	add("postWeekday", WeekdayColumns)
	add("paragraphCount", 1)
	add("noMedia", 1)
	add("paragraphWords", 1)
	return blocks
}

// NumColumns returns the total column count for vocabs.
func NumColumns(vocabs Vocabularies) int {
	blocks := Layout(vocabs)
	return blocks[len(blocks)-1].End
}

// FieldText returns the text of a named field, list values joined by spaces.
func FieldText(r model.Record, field string) (string, error) {
	switch field {
	case FieldTitle:
		return r.TargetTitle.Text(), nil
	case FieldDescription:
		return r.TargetDescription.Text(), nil
	case FieldKeywords:
		return r.TargetKeywords.Text(), nil
	default:
		return "", eris.Errorf("features: unknown text field %q", field)
	}
}

// Assemble vectorizes records into one sparse matrix. Fields present in
// vocabs are applied as-is; missing fields are fit on records. The returned
// mapping is a new value holding every field's vocabulary; vocabs itself is
// never modified.
func Assemble(records []model.Record, vocabs Vocabularies) (*Matrix, Vocabularies, error) {
	n := len(records)
	if n == 0 {
		return nil, nil, eris.New("features: no records to assemble")
	}

	used := make(Vocabularies, len(TextFields))
	maps.Copy(used, vocabs)

	blocks := []mat.Matrix{NewMatrix(n)}

	for _, field := range TextFields {
		corpus := make([]string, n)
		for i, r := range records {
			text, err := FieldText(r, field)
			if err != nil {
				return nil, nil, err
			}
			corpus[i] = text
		}

		var block *Matrix
		if voc, ok := vocabs[field]; ok {
			m, err := Transform(corpus, voc)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "features: apply %s vocabulary", field)
			}
			block = m
		} else {
			m, voc := Fit(corpus)
			used[field] = voc
			block = m
		}
		blocks = append(blocks, block)
	}

	hours := make([]int, n)
	weekdays := make([]int, n)
	for i, r := range records {
		t, err := ParseTimestamp(r.PostTimestamp)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "features: record %s", r.ID)
		}
		hours[i] = HourOfDay(t)
		weekdays[i] = Weekday(t)
	}

	hourBlock, err := OneHot(hours, HourColumns)
	if err != nil {
		return nil, nil, eris.Wrap(err, "features: hour block")
	}
	weekdayBlock, err := OneHot(weekdays, WeekdayColumns)
	if err != nil {
		return nil, nil, eris.Wrap(err, "features: weekday block")
	}
	blocks = append(blocks, hourBlock, weekdayBlock)

	paragraphs := make([]float64, n)
	noMedia := make([]float64, n)
	words := make([]float64, n)
	for i, r := range records {
		paragraphs[i] = float64(len(r.TargetParagraphs))
		if len(r.PostMedia) == 0 {
			noMedia[i] = 1
		}
		words[i] = float64(ParagraphWords(r.TargetParagraphs))
	}
	blocks = append(blocks,
		mat.NewVecDense(n, paragraphs),
		mat.NewVecDense(n, noMedia),
		mat.NewVecDense(n, words),
	)

	m := HStack(blocks...)
	rows, cols := m.Dims()
	zap.L().Debug("features: assembled",
		zap.Int("rows", rows),
		zap.Int("cols", cols),
		zap.Int("nnz", m.NNZ()),
	)
	return m, used, nil
}

// ParagraphWords counts space-separated pieces of the paragraphs joined by
// single spaces. An empty paragraph list counts as one piece.
func ParagraphWords(paragraphs []string) int {
	return len(strings.Split(strings.Join(paragraphs, " "), " "))
}
