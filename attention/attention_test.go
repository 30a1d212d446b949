package attention

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/neuroweave/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func toTokens(texts ...string) []api.Token {
	tokens := make([]api.Token, len(texts))
	for ii, text := range texts {
		tokens[ii] = api.Token{ID: ii, Text: text, Type: api.Classify(text)}
	}
	return tokens
}

func TestRandomRowStochastic(t *testing.T) {
	rng := newRand(1)
	for n := 0; n <= 15; n++ {
		m := Random(n, n, rng)
		rows, cols := m.Dims()
		require.Equal(t, n, rows)
		require.Equal(t, n, cols)
		assert.True(t, m.IsRowStochastic(Tolerance), "n=%d", n)
		for _, sum := range m.RowSums() {
			assert.InDelta(t, 1.0, sum, Tolerance)
		}
	}
}

func TestSingleToken(t *testing.T) {
	m := Random(1, 1, newRand(2))
	assert.Equal(t, 1.0, m.At(0, 0))
}

func TestZeroRowFallsBackToUniform(t *testing.T) {
	m, err := FromRows([][]float64{
		{0, 0, 0, 0},
		{1, 1, 2, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, m.Row(0))
	assert.Equal(t, []float64{0.25, 0.25, 0.5, 0}, m.Row(1))
	assert.True(t, m.IsRowStochastic(Tolerance))
}

func TestFromRowsErrors(t *testing.T) {
	_, err := FromRows([][]float64{{1, 2}, {1}})
	require.Error(t, err)
	_, err = FromRows([][]float64{{1, -2}})
	require.Error(t, err)

	m, err := FromRows(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Mat())
}

func TestUniform(t *testing.T) {
	m := Uniform(4)
	for i := range 4 {
		for j := range 4 {
			assert.Equal(t, 0.25, m.At(i, j))
		}
	}
}

func TestHeuristic(t *testing.T) {
	tokens := toTokens("The", "beautiful", "flower", "so", "vibrant")
	rng := newRand(3)
	for range 50 {
		m := Heuristic(tokens, nil, rng)
		require.True(t, m.IsRowStochastic(Tolerance))

		// beautiful -> flower carries the bonus: its raw weight is at least 0.4, while
		// unrelated targets are below 0.3.
		assert.Greater(t, m.At(1, 2), m.At(1, 0))
		assert.Greater(t, m.At(1, 4), m.At(1, 3))
	}
}

func TestFunctionWordsHaveNoAffinities(t *testing.T) {
	table := DefaultAffinities()
	for _, word := range []string{"the", "a", "an", "and", "but", "or", "in", "on", "at", "to", "for"} {
		require.Contains(t, table, word)
		assert.Empty(t, table[word], "function word %q", word)
	}
	assert.False(t, table.Related("the", "beautiful"))
}

func TestAffinityTable(t *testing.T) {
	table := DefaultAffinities()
	assert.True(t, table.Related("Beautiful", "FLOWER"))
	assert.True(t, table.Related("so", "vibrant"))
	// Directional: "vibrant" doesn't list "so".
	assert.False(t, table.Related("vibrant", "so"))
	assert.False(t, table.Related("cat", "mat"))

	table["the"] = append(table["the"], "cat")
	assert.Empty(t, DefaultAffinities()["the"], "DefaultAffinities must return a fresh copy")
}

func TestLoadAffinities(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "affinities.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte("Cat: [Mat, sits]\nmat: [cat]\n"), 0o644))
	table, err := LoadAffinities(filePath)
	require.NoError(t, err)
	assert.True(t, table.Related("cat", "mat"))
	assert.True(t, table.Related("mat", "CAT"))
	assert.Equal(t, []string{"mat", "sits"}, table["cat"])

	_, err = LoadAffinities(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	tokens := toTokens("a", "b", "c")
	for _, mode := range []Mode{ModeRandom, ModeHeuristic} {
		m, err := Generate(tokens, mode, nil, newRand(5))
		require.NoError(t, err)
		assert.Equal(t, 3, m.Len())
		assert.True(t, m.IsRowStochastic(Tolerance))
	}
	_, err := Generate(tokens, Mode(7), nil, newRand(5))
	require.Error(t, err)
}

func TestGenerateDeterministic(t *testing.T) {
	tokens := toTokens("The", "beautiful", "flower")
	a, err := Generate(tokens, ModeHeuristic, nil, newRand(11))
	require.NoError(t, err)
	b, err := Generate(tokens, ModeHeuristic, nil, newRand(11))
	require.NoError(t, err)
	for i := range 3 {
		assert.Equal(t, a.Row(i), b.Row(i))
	}
}

func TestModeText(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("Heuristic")))
	assert.Equal(t, ModeHeuristic, m)
	text, err := ModeRandom.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "random", string(text))
	require.Error(t, m.UnmarshalText([]byte("learned")))
}

func TestRanked(t *testing.T) {
	m, err := FromRows([][]float64{{1, 3, 2, 3}})
	require.NoError(t, err)
	ranked := m.Ranked(0)
	require.Len(t, ranked, 4)
	assert.Equal(t, []int{1, 3, 2, 0}, []int{ranked[0].Target, ranked[1].Target, ranked[2].Target, ranked[3].Target})
	assert.InDelta(t, 1.0/3, ranked[0].Weight, Tolerance)
}

func TestHeads(t *testing.T) {
	heads := Heads(5, 3, newRand(6))
	require.Len(t, heads, 3)
	for _, h := range heads {
		assert.True(t, h.IsRowStochastic(Tolerance))
	}
	dominant := DominantHeads(heads)
	for i := range 5 {
		for j := range 5 {
			best := dominant[i][j]
			for _, h := range heads {
				assert.LessOrEqual(t, h.At(i, j), heads[best].At(i, j))
			}
		}
	}
	assert.Nil(t, DominantHeads(nil))
}

func TestDominantHeadTies(t *testing.T) {
	a, err := FromRows([][]float64{{1, 1}, {1, 1}})
	require.NoError(t, err)
	b, err := FromRows([][]float64{{1, 1}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 0, DominantHead([]*Matrix{a, b}, 0, 0))
	assert.Equal(t, 1, DominantHead([]*Matrix{a, b}, 1, 1))
}

func TestAggregate(t *testing.T) {
	heads := Heads(4, 3, newRand(7))
	agg, err := Aggregate(heads)
	require.NoError(t, err)
	assert.True(t, agg.IsRowStochastic(Tolerance))
	for i := range 4 {
		for j := range 4 {
			mean := (heads[0].At(i, j) + heads[1].At(i, j) + heads[2].At(i, j)) / 3
			assert.InDelta(t, mean, agg.At(i, j), 1e-12)
		}
	}

	_, err = Aggregate(nil)
	require.Error(t, err)
	_, err = Aggregate([]*Matrix{Random(2, 2, newRand(1)), Random(3, 3, newRand(1))})
	require.Error(t, err)
}

func TestCrossAttention(t *testing.T) {
	m := CrossAttention(10, 6, newRand(8))
	rows, cols := m.Dims()
	assert.Equal(t, 10, rows)
	assert.Equal(t, 6, cols)
	assert.True(t, m.IsRowStochastic(Tolerance))

	empty := CrossAttention(10, 0, newRand(8))
	assert.False(t, empty.IsRowStochastic(Tolerance))
}
