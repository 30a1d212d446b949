// Package encdec simulates an encoder-decoder: the encoder side is the tokenized input, the
// decoder "generates" its output one token at a time from a fixed lookup table, and every
// decoder position has a random cross-attention row over the encoder tokens.
//
// There is no model: outputs come from Table.Lookup, which tries an exact match of the input,
// then keyword rules in order, then the default output.
package encdec

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
)

// KeywordRule matches any input containing (case-folded) one of its keywords.
type KeywordRule struct {
	Any    []string
	Output []string
}

// Table maps inputs to output token sequences.
type Table struct {
	// Exact maps a trimmed input to its output.
	Exact map[string][]string

	// Keywords are tried in order when there is no exact match.
	Keywords []KeywordRule

	// Default output when nothing else matches.
	Default []string
}

// DefaultTable returns a fresh copy of the built-in table.
func DefaultTable() *Table {
	flower := []string{"It", "looks", "vibrant", "."}
	cat := []string{"A", "feline", "rests", "there", "."}
	coding := []string{"Coding", "is", "my", "passion", "."}
	return &Table{
		Exact: map[string][]string{
			"The flower is so beautiful.": slices.Clone(flower),
			"The flower is beautiful.":    slices.Clone(flower),
			"The Flower is beautiful.":    slices.Clone(flower),
			"The cat sits on the mat.":    slices.Clone(cat),
			"I love programming.":         slices.Clone(coding),
		},
		Keywords: []KeywordRule{
			{Any: []string{"flower", "beautiful"}, Output: slices.Clone(flower)},
			{Any: []string{"cat", "mat"}, Output: slices.Clone(cat)},
			{Any: []string{"programming", "coding"}, Output: slices.Clone(coding)},
		},
		Default: []string{"This", "is", "a", "response", "."},
	}
}

// Lookup returns a copy of the output for input: exact match of the trimmed input first, then the
// first keyword rule with a keyword contained in the input (ignoring case), then the default.
func (t *Table) Lookup(input string) []string {
	trimmed := strings.TrimSpace(input)
	if output, ok := t.Exact[trimmed]; ok {
		return slices.Clone(output)
	}
	fold := cases.Fold()
	folded := fold.String(input)
	for _, rule := range t.Keywords {
		for _, keyword := range rule.Any {
			if strings.Contains(folded, fold.String(keyword)) {
				return slices.Clone(rule.Output)
			}
		}
	}
	return slices.Clone(t.Default)
}

// LoadTable parses a JSON table:
//
//	{
//	  "exact":    {"I love programming.": ["Coding", "is", "my", "passion", "."]},
//	  "keywords": [{"any": ["cat", "mat"], "output": ["A", "feline", "rests", "there", "."]}],
//	  "default":  ["This", "is", "a", "response", "."]
//	}
//
// All three fields are optional, but the default output must not be empty.
func LoadTable(content []byte) (*Table, error) {
	if !gjson.ValidBytes(content) {
		return nil, errors.New("decoder table is not valid JSON")
	}
	root := gjson.ParseBytes(content)
	table := &Table{Exact: make(map[string][]string)}

	var err error
	root.Get("exact").ForEach(func(key, value gjson.Result) bool {
		var output []string
		output, err = stringArray(value, "exact."+key.String())
		if err != nil {
			return false
		}
		table.Exact[key.String()] = output
		return true
	})
	if err != nil {
		return nil, err
	}

	for ii, rule := range root.Get("keywords").Array() {
		keywords, err := stringArray(rule.Get("any"), "keywords.any")
		if err != nil {
			return nil, errors.WithMessagef(err, "keyword rule #%d", ii)
		}
		output, err := stringArray(rule.Get("output"), "keywords.output")
		if err != nil {
			return nil, errors.WithMessagef(err, "keyword rule #%d", ii)
		}
		table.Keywords = append(table.Keywords, KeywordRule{Any: keywords, Output: output})
	}

	table.Default, err = stringArray(root.Get("default"), "default")
	if err != nil {
		return nil, err
	}
	if len(table.Default) == 0 {
		return nil, errors.New("decoder table requires a non-empty \"default\" output")
	}
	return table, nil
}

// stringArray converts a JSON array of strings. A missing value is an empty array.
func stringArray(value gjson.Result, field string) ([]string, error) {
	if !value.Exists() {
		return nil, nil
	}
	if !value.IsArray() {
		return nil, errors.Errorf("%q must be an array of strings, got %s", field, value.Type)
	}
	var result []string
	for _, item := range value.Array() {
		if item.Type != gjson.String {
			return nil, errors.Errorf("%q must only contain strings, got %s", field, item.Type)
		}
		result = append(result, item.String())
	}
	return result, nil
}
