package wordsplit

import (
	"testing"

	"github.com/gomlx/neuroweave/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		subwords bool
		want     []string
	}{
		{name: "sentence", input: "The cat sits.", want: []string{"The", "cat", "sits", "."}},
		{name: "subword split", input: "elephant", subwords: true, want: []string{"elep", "##hant"}},
		{name: "odd length split", input: "flowers!", subwords: true, want: []string{"flo", "##wers", "!"}},
		{name: "short word kept", input: "sitting cat", subwords: true, want: []string{"sit", "##ting", "cat"}},
		{name: "six letters not split", input: "flower", subwords: true, want: []string{"flower"}},
		{name: "digits not split", input: "12345678", subwords: true, want: []string{"12345678"}},
		{name: "mixed alnum not split", input: "abc12345", subwords: true, want: []string{"abc12345"}},
		{name: "subwords disabled", input: "elephant", want: []string{"elephant"}},
		{name: "punctuation runs", input: "wow!!", want: []string{"wow", "!", "!"}},
		{name: "underscore is word char", input: "snake_case x", want: []string{"snake_case", "x"}},
		{name: "numbers", input: "I have 42 cats, 3 dogs", want: []string{"I", "have", "42", "cats", ",", "3", "dogs"}},
		{name: "surrounding space", input: "   hello   world \n", want: []string{"hello", "world"}},
		{name: "non ascii rune", input: "caf\u00e9", want: []string{"caf", "\u00e9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := New(WithSubwords(tt.subwords))
			got := tok.Tokenize(tt.input)
			assert.Equal(t, tt.want, api.Texts(got))
			for ii, token := range got {
				assert.Equal(t, ii, token.ID, "IDs must be positional")
			}
		})
	}
}

func TestTokenizeEmpty(t *testing.T) {
	tok := New(WithSubwords(true))
	for _, input := range []string{"", "   ", "\t\n"} {
		assert.Empty(t, tok.Tokenize(input), "input %q", input)
	}
}

func TestTokenizeTypes(t *testing.T) {
	tok := New(WithSubwords(true))
	got := tok.Tokenize("Beautiful 7 .")
	require.Len(t, got, 4)
	assert.Equal(t, api.TypeWord, got[0].Type)
	// "##" continuations classify as punctuation.
	assert.Equal(t, "##tiful", got[1].Text)
	assert.Equal(t, api.TypePunctuation, got[1].Type)
	assert.Equal(t, api.TypeNumber, got[2].Type)
	assert.Equal(t, api.TypePunctuation, got[3].Type)
}

func TestTokenizeSpans(t *testing.T) {
	input := "  The elephant."
	tok := New(WithSubwords(true))
	got := tok.Tokenize(input)
	require.Len(t, got, 4)
	assert.Equal(t, "The", input[got[0].Span.Start:got[0].Span.End])
	assert.Equal(t, "elep", input[got[1].Span.Start:got[1].Span.End])
	assert.Equal(t, "hant", input[got[2].Span.Start:got[2].Span.End])
	assert.Equal(t, ".", input[got[3].Span.Start:got[3].Span.End])
}

func TestTokenizeDeterministic(t *testing.T) {
	tok := New(WithSubwords(true))
	input := "Transformers attend to every token, 100 times!"
	first := tok.Tokenize(input)
	for range 10 {
		assert.Equal(t, first, tok.Tokenize(input))
	}
}

func TestNormalization(t *testing.T) {
	decomposed := "cafe\u0301"
	plain := New().Tokenize(decomposed)
	assert.Equal(t, []string{"cafe", "\u0301"}, api.Texts(plain))

	nfc := New(WithNormalization(norm.NFC)).Tokenize(decomposed)
	assert.Equal(t, []string{"caf", "\u00e9"}, api.Texts(nfc))
}

func TestParseNormalization(t *testing.T) {
	form, ok, err := ParseNormalization("nfkc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, norm.NFKC, form)

	_, ok, err = ParseNormalization("")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseNormalization("NFZ")
	require.Error(t, err)
}

func TestCached(t *testing.T) {
	c, err := NewCached(New(WithSubwords(true)), 2)
	require.NoError(t, err)

	first := c.Tokenize("elephant")
	assert.Equal(t, []string{"elep", "##hant"}, api.Texts(first))
	first[0].Text = "mutated"
	assert.Equal(t, []string{"elep", "##hant"}, api.Texts(c.Tokenize("elephant")))

	c.Tokenize("a")
	c.Tokenize("b")
	assert.Equal(t, 2, c.Len())

	_, err = NewCached(nil, 1)
	require.Error(t, err)
}
