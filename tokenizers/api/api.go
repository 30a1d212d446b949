// Package api defines the Token types and the Tokenizer API.
// It's kept separate so that the attention, session and render packages can share the token types
// without importing a concrete tokenizer.
package api

import (
	"github.com/pkg/errors"
)

// TokenSpan represents the byte span of a token in the original text.
// Start and End are byte offsets (not rune offsets), suitable for slicing
// Go strings directly: originalText[span.Start:span.End].
//
// For a subword continuation the span covers only the characters taken from the text, not the
// synthetic "##" marker.
type TokenSpan struct {
	Start int // start byte position (inclusive)
	End   int // end byte position (exclusive)
}

// Token is an atomic unit produced by splitting input text.
//
// ID is positional: it's the index of the token in the sequence that produced it, and it's
// re-derived on every tokenization.
type Token struct {
	ID   int
	Text string
	Type TokenType
	Span TokenSpan
}

// Tokenizer splits text into a sequence of tokens.
//
// Implementations must be deterministic: the same text always yields the same sequence.
// Empty (or whitespace only) text yields an empty sequence, never an error.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// TokenType classifies a token by its text.
type TokenType int

const (
	TypePunctuation TokenType = iota
	TypeWord
	TypeNumber
)

var tokenTypeNames = []string{"punctuation", "word", "number"}

// String implements fmt.Stringer.
func (t TokenType) String() string {
	if t < 0 || int(t) >= len(tokenTypeNames) {
		return "TokenType(unknown)"
	}
	return tokenTypeNames[t]
}

// MarshalText implements encoding.TextMarshaler.
func (t TokenType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TokenType) UnmarshalText(text []byte) error {
	for ii, name := range tokenTypeNames {
		if name == string(text) {
			*t = TokenType(ii)
			return nil
		}
	}
	return errors.Errorf("unknown token type %q", string(text))
}

// Classify returns the type of the token text: all ASCII digits is a number, all ASCII letters
// is a word, anything else (including the empty string and "##" subword continuations) is punctuation.
func Classify(text string) TokenType {
	if text == "" {
		return TypePunctuation
	}
	digits, letters := true, true
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c < '0' || c > '9' {
			digits = false
		}
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			letters = false
		}
	}
	switch {
	case digits:
		return TypeNumber
	case letters:
		return TypeWord
	default:
		return TypePunctuation
	}
}

// Texts returns the text of each token, in order.
func Texts(tokens []Token) []string {
	texts := make([]string, len(tokens))
	for ii, tok := range tokens {
		texts[ii] = tok.Text
	}
	return texts
}
