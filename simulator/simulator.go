// Package simulator moves tokens on the viewport according to a weight matrix: every layer
// replaces each token position by the weighted average of all positions (a convex combination,
// since rows sum to one), then resolves collisions.
//
// Everything here is a pure function of its inputs; randomness only enters through an explicit
// seed in Simulate.
package simulator

import (
	"math/rand/v2"

	"github.com/gomlx/neuroweave/attention"
	"github.com/gomlx/neuroweave/layout"
	"github.com/gomlx/neuroweave/tokenizers/api"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// NewRand returns the deterministic random source used for a given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Mix returns, for every token i, the sum over j of weights[i][j] * points[j].
//
// All new positions are computed from the positions before the update (a synchronous sweep),
// so the result doesn't depend on token order.
func Mix(weights *attention.Matrix, points []layout.Position) ([]layout.Position, error) {
	rows, cols := weights.Dims()
	if cols != len(points) {
		return nil, errors.Errorf("weights have %d columns but there are %d points", cols, len(points))
	}
	if rows == 0 || cols == 0 {
		return make([]layout.Position, rows), nil
	}
	coords := mat.NewDense(len(points), 2, nil)
	for j, p := range points {
		coords.Set(j, 0, p.X)
		coords.Set(j, 1, p.Y)
	}
	var mixed mat.Dense
	mixed.Mul(weights.Mat(), coords)
	result := make([]layout.Position, rows)
	for i := range result {
		result[i] = layout.Position{X: mixed.At(i, 0), Y: mixed.At(i, 1)}
	}
	return result, nil
}

// ApplyLayer runs one layer: Mix followed by layout.Resolve. The weights must be square and
// sized to the points. points isn't modified.
func ApplyLayer(weights *attention.Matrix, points []layout.Position, viewport layout.Viewport, params layout.Params) ([]layout.Position, error) {
	if rows, cols := weights.Dims(); rows != cols {
		return nil, errors.Errorf("layer weights must be square, got %dx%d", rows, cols)
	}
	mixed, err := Mix(weights, points)
	if err != nil {
		return nil, err
	}
	return layout.Resolve(mixed, viewport, params), nil
}

// Run applies layers layers in sequence, each on the previous layer's resolved positions, and
// returns the positions after every layer.
func Run(weights *attention.Matrix, initial []layout.Position, layers int, viewport layout.Viewport, params layout.Params) ([][]layout.Position, error) {
	history := make([][]layout.Position, 0, layers)
	current := initial
	for layer := range layers {
		next, err := ApplyLayer(weights, current, viewport, params)
		if err != nil {
			return nil, errors.WithMessagef(err, "layer %d", layer+1)
		}
		history = append(history, next)
		current = next
	}
	return history, nil
}

// Options configures Simulate.
type Options struct {
	Mode       attention.Mode
	Affinities attention.AffinityTable // Used by attention.ModeHeuristic; nil for the default table.
	Layers     int
	Viewport   layout.Viewport
	Params     layout.Params
}

// DefaultOptions returns heuristic weighting over 4 layers on the default viewport.
func DefaultOptions() Options {
	return Options{
		Mode:     attention.ModeHeuristic,
		Layers:   4,
		Viewport: layout.DefaultViewport,
		Params:   layout.DefaultParams,
	}
}

// Result of Simulate.
type Result struct {
	Weights *attention.Matrix
	Initial []layout.Position
	Layers  [][]layout.Position // Layers[k] holds the positions after layer k+1.
}

// Final returns the positions after the last layer, or the initial positions if no layer was run.
func (r *Result) Final() []layout.Position {
	if len(r.Layers) == 0 {
		return r.Initial
	}
	return r.Layers[len(r.Layers)-1]
}

// Simulate lays out tokens randomly, generates their weights and runs opts.Layers layers.
// The same tokens, seed and options always give the same Result.
func Simulate(tokens []api.Token, seed uint64, opts Options) (*Result, error) {
	if opts.Layers < 0 {
		return nil, errors.Errorf("number of layers must be >= 0, got %d", opts.Layers)
	}
	if err := opts.Viewport.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	rng := NewRand(seed)
	initial := layout.Scatter(len(tokens), opts.Viewport, opts.Params, rng)
	weights, err := attention.Generate(tokens, opts.Mode, opts.Affinities, rng)
	if err != nil {
		return nil, err
	}
	history, err := Run(weights, initial, opts.Layers, opts.Viewport, opts.Params)
	if err != nil {
		return nil, err
	}
	return &Result{Weights: weights, Initial: initial, Layers: history}, nil
}
