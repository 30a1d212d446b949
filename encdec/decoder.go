package encdec

import (
	"math/rand/v2"
	"slices"

	"github.com/gomlx/neuroweave/attention"
	"github.com/gomlx/neuroweave/simulator"
	"github.com/gomlx/neuroweave/tokenizers/api"
	"github.com/gomlx/neuroweave/tokenizers/wordsplit"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MaxDecoderTokens is the minimum number of cross-attention rows generated per encoding.
const MaxDecoderTokens = 10

// Decoder steps through the output of an encoded input, one token per Next call.
// It isn't safe for concurrent use.
type Decoder struct {
	table     *Table
	tokenizer api.Tokenizer
	rng       *rand.Rand

	encoder []api.Token
	output  []string
	decoded []api.Token
	cross   *attention.Matrix
}

// NewDecoder creates a decoder. A nil table uses DefaultTable, and a nil tokenizer a plain
// wordsplit.Tokenizer.
func NewDecoder(table *Table, tokenizer api.Tokenizer, seed uint64) *Decoder {
	if table == nil {
		table = DefaultTable()
	}
	if tokenizer == nil {
		tokenizer = wordsplit.New()
	}
	return &Decoder{table: table, tokenizer: tokenizer, rng: simulator.NewRand(seed)}
}

// Encode tokenizes text as the encoder input, picks its output from the table and draws fresh
// cross-attention weights. Any previous decoding is discarded.
//
// Text that is empty after trimming is a no-op and Encode returns false.
func (d *Decoder) Encode(text string) bool {
	tokens := d.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return false
	}
	d.encoder = tokens
	d.output = d.table.Lookup(text)
	d.decoded = nil
	rows := max(MaxDecoderTokens, len(d.output))
	d.cross = attention.CrossAttention(rows, len(tokens), d.rng)
	klog.V(1).Infof("encoder-decoder: %d encoder tokens, %d output tokens", len(tokens), len(d.output))
	return true
}

// Next emits the next output token. It returns false once the output is exhausted, or if
// nothing was encoded.
func (d *Decoder) Next() (api.Token, bool) {
	step := len(d.decoded)
	if step >= len(d.output) {
		return api.Token{}, false
	}
	text := d.output[step]
	token := api.Token{ID: step, Text: text, Type: api.Classify(text)}
	d.decoded = append(d.decoded, token)
	return token, true
}

// Done reports whether every output token was emitted.
func (d *Decoder) Done() bool {
	return len(d.decoded) >= len(d.output)
}

// Encoder returns a copy of the encoder tokens.
func (d *Decoder) Encoder() []api.Token {
	return slices.Clone(d.encoder)
}

// Decoded returns a copy of the tokens emitted so far.
func (d *Decoder) Decoded() []api.Token {
	return slices.Clone(d.decoded)
}

// CrossAttention returns the cross-attention matrix of the current encoding: row i is the
// distribution of decoder position i over the encoder tokens. It's nil before Encode.
func (d *Decoder) CrossAttention() *attention.Matrix {
	return d.cross
}

// Attention returns the cross-attention row of an emitted decoder token, over the encoder tokens.
func (d *Decoder) Attention(step int) ([]float64, error) {
	if step < 0 || step >= len(d.decoded) {
		return nil, errors.Errorf("decoder step %d not emitted yet (%d emitted)", step, len(d.decoded))
	}
	return d.cross.Row(step), nil
}

// Reset discards the encoding and everything decoded.
func (d *Decoder) Reset() {
	d.encoder = nil
	d.output = nil
	d.decoded = nil
	d.cross = nil
}
