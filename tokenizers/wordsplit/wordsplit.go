// Package wordsplit implements an api.Tokenizer that splits text into runs of word characters and
// single punctuation characters, with an optional naive subword pass that mimics WordPiece
// notation without any vocabulary.
//
// Example:
//
//	tok := wordsplit.New(wordsplit.WithSubwords(true))
//	for _, t := range tok.Tokenize("The elephant sits.") {
//		fmt.Printf("%d %q %s\n", t.ID, t.Text, t.Type)
//	}
package wordsplit

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/gomlx/neuroweave/tokenizers/api"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// ContinuationPrefix marks the second half of a split word, as in WordPiece.
const ContinuationPrefix = "##"

// MinSubwordLen is the minimum length of a purely alphabetic token to be split in subword mode.
const MinSubwordLen = 7

// splitPattern matches a maximal run of word characters ([0-9A-Za-z_]) or a single character that
// is neither a word character nor a space.
var splitPattern = regexp.MustCompile(`\w+|[^\s\p{Z}\v\w]`)

// Tokenizer implements api.Tokenizer. It's immutable after creation and safe for concurrent use.
type Tokenizer struct {
	subwords bool
	form     *norm.Form
}

// Compile time assert that wordsplit.Tokenizer implements api.Tokenizer interface.
var _ api.Tokenizer = &Tokenizer{}

// Option configures a Tokenizer.
type Option func(t *Tokenizer)

// WithSubwords enables (or disables) the subword post-pass: every purely alphabetic token of
// MinSubwordLen or more letters is cut at its midpoint into a prefix and a "##" continuation.
func WithSubwords(enabled bool) Option {
	return func(t *Tokenizer) {
		t.subwords = enabled
	}
}

// WithNormalization applies the given Unicode normalization form to the text before splitting.
// Spans then index into the normalized text.
func WithNormalization(form norm.Form) Option {
	return func(t *Tokenizer) {
		t.form = &form
	}
}

// ParseNormalization converts a form name ("NFC", "NFD", "NFKC", "NFKD") to a norm.Form.
// The empty string or "none" returns ok=false with no error.
func ParseNormalization(name string) (form norm.Form, ok bool, err error) {
	switch strings.ToUpper(name) {
	case "", "NONE":
		return 0, false, nil
	case "NFC":
		return norm.NFC, true, nil
	case "NFD":
		return norm.NFD, true, nil
	case "NFKC":
		return norm.NFKC, true, nil
	case "NFKD":
		return norm.NFKD, true, nil
	}
	return 0, false, errors.Errorf("unknown normalization form %q", name)
}

// New creates a Tokenizer. Without options it doesn't split subwords nor normalize.
func New(options ...Option) *Tokenizer {
	t := &Tokenizer{}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Subwords reports whether the subword post-pass is enabled.
func (t *Tokenizer) Subwords() bool {
	return t.subwords
}

// Tokenize splits text into tokens, in order of appearance.
// Leading and trailing whitespace is ignored, and text that is empty after trimming yields no tokens.
func (t *Tokenizer) Tokenize(text string) []api.Token {
	if t.form != nil {
		text = t.form.String(text)
	}
	if strings.TrimFunc(text, unicode.IsSpace) == "" {
		return nil
	}

	matches := splitPattern.FindAllStringIndex(text, -1)
	tokens := make([]api.Token, 0, len(matches))
	emit := func(piece string, start, end int) {
		tokens = append(tokens, api.Token{
			ID:   len(tokens),
			Text: piece,
			Type: api.Classify(piece),
			Span: api.TokenSpan{Start: start, End: end},
		})
	}
	for _, m := range matches {
		start, end := m[0], m[1]
		piece := text[start:end]
		if t.subwords && isSplittable(piece) {
			mid := len(piece) / 2
			emit(piece[:mid], start, start+mid)
			emit(ContinuationPrefix+piece[mid:], start+mid, end)
			continue
		}
		emit(piece, start, end)
	}
	return tokens
}

// isSplittable reports whether piece is purely ASCII alphabetic with at least MinSubwordLen letters.
func isSplittable(piece string) bool {
	if len(piece) < MinSubwordLen {
		return false
	}
	return api.Classify(piece) == api.TypeWord
}
