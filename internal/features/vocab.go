package features

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// SaveVocabularies writes vocabs as a JSON document of
// {field: {n-gram: index}}.
func SaveVocabularies(path string, vocabs Vocabularies) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "vocab: create dir %s", dir)
		}
	}
	data, err := json.Marshal(vocabs)
	if err != nil {
		return eris.Wrap(err, "vocab: marshal")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "vocab: write %s", path)
}

// LoadVocabularies reads a document written by SaveVocabularies and
// validates every field's index assignment.
func LoadVocabularies(path string) (Vocabularies, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vocab: read %s", path)
	}
	var vocabs Vocabularies
	if err := json.Unmarshal(data, &vocabs); err != nil {
		return nil, eris.Wrapf(err, "vocab: parse %s", path)
	}
	for field, v := range vocabs {
		if err := v.Validate(); err != nil {
			return nil, eris.Wrapf(err, "vocab: field %s", field)
		}
	}
	return vocabs, nil
}
