package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// TruthClassClickbait is the truthClass value marking a positive label.
const TruthClassClickbait = "clickbait"

// ID identifies a post across the instances and truth collections. The
// corpus ships ids as either JSON strings or integers; both decode to the
// same canonical string form so they compare equal.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return eris.New("id: null or empty")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "id: decode string")
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "id: decode number")
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// String returns the canonical id.
func (id ID) String() string { return string(id) }

// TextValue is a text field that arrives either as a single string or as a
// list of strings.
type TextValue []string

// UnmarshalJSON accepts a JSON string or an array of strings.
func (t *TextValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return eris.Wrap(err, "text value: decode list")
		}
		*t = parts
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "text value: decode string")
	}
	*t = TextValue{s}
	return nil
}

// MarshalJSON writes single-element values back as a plain string.
func (t TextValue) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// Text joins the parts with single spaces.
func (t TextValue) Text() string {
	return strings.Join(t, " ")
}

// Record is one post/article pair from the instances collection.
type Record struct {
	ID                ID        `json:"id"`
	PostText          TextValue `json:"postText,omitempty"`
	TargetTitle       TextValue `json:"targetTitle"`
	TargetDescription TextValue `json:"targetDescription"`
	TargetKeywords    TextValue `json:"targetKeywords"`
	TargetParagraphs  []string  `json:"targetParagraphs"`
	PostTimestamp     string    `json:"postTimestamp"`
	PostMedia         []string  `json:"postMedia"`
}

// Title returns the article title as displayed text.
func (r Record) Title() string {
	return r.TargetTitle.Text()
}

// Clone returns a copy that shares no slices with r.
func (r Record) Clone() Record {
	c := r
	c.PostText = cloneStrings(r.PostText)
	c.TargetTitle = cloneStrings(r.TargetTitle)
	c.TargetDescription = cloneStrings(r.TargetDescription)
	c.TargetKeywords = cloneStrings(r.TargetKeywords)
	c.TargetParagraphs = cloneStrings(r.TargetParagraphs)
	c.PostMedia = cloneStrings(r.PostMedia)
	return c
}

// Label is one truth record.
type Label struct {
	ID         ID      `json:"id"`
	TruthClass string  `json:"truthClass"`
	TruthMean  float64 `json:"truthMean,omitempty"`
}

// IsClickbait collapses the truth class to a boolean.
func (l Label) IsClickbait() bool {
	return l.TruthClass == TruthClassClickbait
}

func cloneStrings[S ~[]string](s S) S {
	if s == nil {
		return nil
	}
	out := make(S, len(s))
	copy(out, s)
	return out
}
