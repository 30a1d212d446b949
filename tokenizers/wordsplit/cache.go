package wordsplit

import (
	"slices"

	"github.com/gomlx/neuroweave/tokenizers/api"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// DefaultCacheSize is the number of distinct texts kept by NewCached when size <= 0.
const DefaultCacheSize = 256

// Cached wraps an api.Tokenizer with an LRU cache keyed by the input text.
//
// Tokenization is deterministic, so the cache never changes results. Returned slices are copies,
// so callers may mutate them freely.
type Cached struct {
	base  api.Tokenizer
	cache *lru.Cache
}

// Compile time assert that wordsplit.Cached implements api.Tokenizer interface.
var _ api.Tokenizer = &Cached{}

// NewCached creates a cached tokenizer around base holding up to size entries.
func NewCached(base api.Tokenizer, size int) (*Cached, error) {
	if base == nil {
		return nil, errors.New("NewCached requires a base tokenizer")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create tokenizer cache of size %d", size)
	}
	return &Cached{base: base, cache: cache}, nil
}

// Tokenize implements api.Tokenizer.
func (c *Cached) Tokenize(text string) []api.Token {
	if v, ok := c.cache.Get(text); ok {
		return slices.Clone(v.([]api.Token))
	}
	tokens := c.base.Tokenize(text)
	c.cache.Add(text, slices.Clone(tokens))
	return tokens
}

// Len returns the number of cached texts.
func (c *Cached) Len() int {
	return c.cache.Len()
}
