package simulator

import (
	"testing"

	"github.com/gomlx/neuroweave/attention"
	"github.com/gomlx/neuroweave/layout"
	"github.com/gomlx/neuroweave/tokenizers/wordsplit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPoints(n int, seed uint64) []layout.Position {
	rng := NewRand(seed)
	points := make([]layout.Position, n)
	for ii := range points {
		points[ii] = layout.Position{X: 30 + rng.Float64()*440, Y: 30 + rng.Float64()*340}
	}
	return points
}

func TestMixConvexBound(t *testing.T) {
	for seed := range uint64(50) {
		n := 2 + int(seed%12)
		points := randomPoints(n, seed)
		weights := attention.Random(n, n, NewRand(seed+1000))
		mixed, err := Mix(weights, points)
		require.NoError(t, err)
		box := layout.Bounds(points)
		for _, p := range mixed {
			assert.GreaterOrEqual(t, p.X, box.MinX-1e-9)
			assert.LessOrEqual(t, p.X, box.MaxX+1e-9)
			assert.GreaterOrEqual(t, p.Y, box.MinY-1e-9)
			assert.LessOrEqual(t, p.Y, box.MaxY+1e-9)
		}
	}
}

func TestMixIsSynchronous(t *testing.T) {
	points := []layout.Position{{X: 0, Y: 0}, {X: 100, Y: 0}}
	// Each token moves fully to the other: a sequential sweep would leave both at 0.
	weights, err := attention.FromRows([][]float64{{0, 1}, {1, 0}})
	require.NoError(t, err)
	mixed, err := Mix(weights, points)
	require.NoError(t, err)
	assert.Equal(t, []layout.Position{{X: 100, Y: 0}, {X: 0, Y: 0}}, mixed)
}

func TestMixWeightedAverage(t *testing.T) {
	points := []layout.Position{{X: 0, Y: 0}, {X: 100, Y: 200}, {X: 300, Y: 100}}
	weights, err := attention.FromRows([][]float64{{2, 1, 1}, {0, 1, 0}, {1, 0, 1}})
	require.NoError(t, err)
	mixed, err := Mix(weights, points)
	require.NoError(t, err)
	assert.InDelta(t, 100, mixed[0].X, 1e-9)
	assert.InDelta(t, 75, mixed[0].Y, 1e-9)
	assert.Equal(t, points[1], mixed[1])
	assert.InDelta(t, 150, mixed[2].X, 1e-9)
	assert.InDelta(t, 50, mixed[2].Y, 1e-9)
}

func TestMixDimensionMismatch(t *testing.T) {
	_, err := Mix(attention.Uniform(3), randomPoints(2, 1))
	require.Error(t, err)
	_, err = ApplyLayer(attention.CrossAttention(2, 3, NewRand(1)), randomPoints(3, 1), layout.DefaultViewport, layout.DefaultParams)
	require.Error(t, err)
}

func TestApplyLayerSingleToken(t *testing.T) {
	points := []layout.Position{{X: 123.5, Y: 321.25}}
	next, err := ApplyLayer(attention.Random(1, 1, NewRand(2)), points, layout.DefaultViewport, layout.DefaultParams)
	require.NoError(t, err)
	assert.Equal(t, points, next)
}

func TestApplyLayerEmpty(t *testing.T) {
	next, err := ApplyLayer(attention.Uniform(0), nil, layout.DefaultViewport, layout.DefaultParams)
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestApplyLayerDoesNotModifyInput(t *testing.T) {
	points := randomPoints(6, 3)
	before := append([]layout.Position(nil), points...)
	_, err := ApplyLayer(attention.Random(6, 6, NewRand(4)), points, layout.DefaultViewport, layout.DefaultParams)
	require.NoError(t, err)
	assert.Equal(t, before, points)
}

func TestRunStaysInViewport(t *testing.T) {
	points := randomPoints(12, 5)
	history, err := Run(attention.Random(12, 12, NewRand(6)), points, 4, layout.DefaultViewport, layout.DefaultParams)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for _, layer := range history {
		require.Len(t, layer, 12)
		for _, p := range layer {
			assert.True(t, layout.DefaultViewport.Contains(p))
		}
	}
}

func TestSimulateDeterministic(t *testing.T) {
	tokens := wordsplit.New().Tokenize("The beautiful flower so vibrant")
	a, err := Simulate(tokens, 42, DefaultOptions())
	require.NoError(t, err)
	b, err := Simulate(tokens, 42, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Initial, b.Initial)
	assert.Equal(t, a.Layers, b.Layers)
	require.Len(t, a.Layers, 4)
	assert.Equal(t, a.Layers[3], a.Final())
	assert.True(t, a.Weights.IsRowStochastic(attention.Tolerance))

	c, err := Simulate(tokens, 43, DefaultOptions())
	require.NoError(t, err)
	assert.NotEqual(t, a.Initial, c.Initial)
}

func TestSimulateOptionsErrors(t *testing.T) {
	tokens := wordsplit.New().Tokenize("a b")
	opts := DefaultOptions()
	opts.Layers = -1
	_, err := Simulate(tokens, 1, opts)
	require.Error(t, err)

	opts = DefaultOptions()
	opts.Params.Strength = 2
	_, err = Simulate(tokens, 1, opts)
	require.Error(t, err)

	opts = DefaultOptions()
	opts.Layers = 0
	r, err := Simulate(tokens, 1, opts)
	require.NoError(t, err)
	assert.Equal(t, r.Initial, r.Final())
}

// TestAffinityPairMovesCloser checks statistically that curated pairs end closer than they start.
func TestAffinityPairMovesCloser(t *testing.T) {
	tokens := wordsplit.New().Tokenize("The beautiful flower so vibrant")
	require.Len(t, tokens, 5)
	const trials = 200
	closer := 0
	for seed := range uint64(trials) {
		r, err := Simulate(tokens, seed, DefaultOptions())
		require.NoError(t, err)
		before := r.Initial[1].Distance(r.Initial[2])
		after := r.Final()[1].Distance(r.Final()[2])
		if after < before {
			closer++
		}
	}
	assert.Greater(t, closer, trials*6/10, "beautiful and flower got closer in only %d of %d runs", closer, trials)
}
