package features

import (
	"regexp"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// N-gram lengths produced by the text vectorizer.
const (
	MinNGram = 1
	MaxNGram = 5
)

// tokenPattern matches runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// Vocabulary maps an n-gram to its column index. Once fit it is frozen:
// later batches of the same field are vectorized against it unchanged.
type Vocabulary map[string]int

// Validate checks that the indices are exactly 0..len-1.
func (v Vocabulary) Validate() error {
	seen := make([]bool, len(v))
	for term, idx := range v {
		if idx < 0 || idx >= len(v) {
			return eris.Errorf("vocabulary: term %q has index %d outside [0,%d)", term, idx, len(v))
		}
		if seen[idx] {
			return eris.Errorf("vocabulary: index %d assigned twice", idx)
		}
		seen[idx] = true
	}
	return nil
}

// Terms returns the n-grams ordered by column index.
func (v Vocabulary) Terms() []string {
	out := make([]string, len(v))
	for term, idx := range v {
		if idx >= 0 && idx < len(out) {
			out[idx] = term
		}
	}
	return out
}

// Tokenize lower-cases text and splits it into word tokens of length two
// or more.
func Tokenize(text string) []string {
	lower := cases.Lower(language.Und).String(text)
	return tokenPattern.FindAllString(lower, -1)
}

// NGrams returns every contiguous run of lo..hi tokens joined by a space,
// shortest first.
func NGrams(tokens []string, lo, hi int) []string {
	var out []string
	for n := lo; n <= hi; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

func documentNGrams(doc string) []string {
	return NGrams(Tokenize(doc), MinNGram, MaxNGram)
}

// Fit builds a vocabulary over every n-gram in the corpus, with indices in
// lexicographic order, and returns the binary indicator matrix for corpus.
func Fit(corpus []string) (*Matrix, Vocabulary) {
	docs := make([][]string, len(corpus))
	terms := map[string]struct{}{}
	for i, doc := range corpus {
		docs[i] = documentNGrams(doc)
		for _, g := range docs[i] {
			terms[g] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(terms))
	for g := range terms {
		sorted = append(sorted, g)
	}
	slices.Sort(sorted)

	vocab := make(Vocabulary, len(sorted))
	for i, g := range sorted {
		vocab[g] = i
	}
	return indicatorRows(lookupAll(docs, vocab), len(vocab)), vocab
}

// Transform vectorizes corpus against a previously fit vocabulary. N-grams
// absent from the vocabulary are dropped; the block always has len(vocab)
// columns.
func Transform(corpus []string, vocab Vocabulary) (*Matrix, error) {
	if err := vocab.Validate(); err != nil {
		return nil, err
	}
	docs := make([][]string, len(corpus))
	for i, doc := range corpus {
		docs[i] = documentNGrams(doc)
	}
	return indicatorRows(lookupAll(docs, vocab), len(vocab)), nil
}

// lookupAll maps each document's n-grams to a sorted, de-duplicated column set.
func lookupAll(docs [][]string, vocab Vocabulary) [][]int {
	sets := make([][]int, len(docs))
	for i, grams := range docs {
		var cols []int
		for _, g := range grams {
			if idx, ok := vocab[g]; ok {
				cols = append(cols, idx)
			}
		}
		slices.Sort(cols)
		sets[i] = slices.Compact(cols)
	}
	return sets
}
