// Package attention generates the row-stochastic weight matrices ("heads") that drive the
// position simulator: uniform random heads, a heuristic head based on a curated table of word
// affinities, aggregates of several heads and rectangular cross-attention matrices.
//
// There is no model behind these weights: every cell is random noise, optionally with a bonus
// for curated word pairs, and every row is normalized to sum to one.
package attention

import (
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tolerance used when checking that rows sum to one.
const Tolerance = 1e-9

// Matrix is a row-stochastic matrix: every entry is in [0, 1] and every row sums to 1.
// Row i is the distribution of how strongly source i attends to each target j.
//
// A Matrix is immutable once created. The zero-sized matrix (no tokens) is valid.
type Matrix struct {
	rows, cols int
	dense      *mat.Dense // nil if rows or cols is 0.
}

// newMatrix normalizes every row of data (rows x cols, row-major) in place and wraps it.
func newMatrix(rows, cols int, data []float64) *Matrix {
	m := &Matrix{rows: rows, cols: cols}
	if rows == 0 || cols == 0 {
		return m
	}
	for i := 0; i < rows; i++ {
		normalizeRow(data[i*cols : (i+1)*cols])
	}
	m.dense = mat.NewDense(rows, cols, data)
	return m
}

// normalizeRow divides every value by the row sum. A row that sums to zero becomes uniform.
func normalizeRow(row []float64) {
	sum := floats.Sum(row)
	if sum <= 0 {
		for j := range row {
			row[j] = 1 / float64(len(row))
		}
		return
	}
	floats.Scale(1/sum, row)
}

// FromRows creates a Matrix from non-negative rows, normalizing each one to sum to 1.
// Rows that are all zero become uniform.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return &Matrix{}, nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Errorf("row %d has %d columns, expected %d", i, len(row), cols)
		}
		for j, v := range row {
			if v < 0 {
				return nil, errors.Errorf("negative weight %g at (%d, %d)", v, i, j)
			}
		}
		data = append(data, row...)
	}
	return newMatrix(len(rows), cols, data), nil
}

// Random draws rows x cols independent uniform samples in [0, 1) and normalizes every row.
func Random(rows, cols int, rng *rand.Rand) *Matrix {
	data := make([]float64, rows*cols)
	for ii := range data {
		data[ii] = rng.Float64()
	}
	return newMatrix(rows, cols, data)
}

// Uniform returns the n x n matrix whose every entry is 1/n.
func Uniform(n int) *Matrix {
	return newMatrix(n, n, make([]float64, n*n))
}

// Dims returns the number of rows (sources) and columns (targets).
func (m *Matrix) Dims() (rows, cols int) {
	return m.rows, m.cols
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return m.rows
}

// At returns the weight of source i on target j.
func (m *Matrix) At(i, j int) float64 {
	return m.dense.At(i, j)
}

// Row returns a copy of the outgoing weights of source i.
func (m *Matrix) Row(i int) []float64 {
	if m.dense == nil {
		return nil
	}
	return slices.Clone(m.dense.RawRowView(i))
}

// Mat returns the underlying gonum matrix, or nil for a zero-sized matrix.
// It must not be modified.
func (m *Matrix) Mat() mat.Matrix {
	if m.dense == nil {
		return nil
	}
	return m.dense
}

// RowSums returns the sum of every row. They are all 1 within Tolerance.
func (m *Matrix) RowSums() []float64 {
	sums := make([]float64, m.rows)
	if m.dense == nil {
		return sums
	}
	for i := range sums {
		sums[i] = floats.Sum(m.dense.RawRowView(i))
	}
	return sums
}

// IsRowStochastic reports whether every entry is non-negative and every row sums to 1 within tol.
// A matrix with rows but no columns is not.
func (m *Matrix) IsRowStochastic(tol float64) bool {
	if m.dense == nil {
		return m.rows == 0
	}
	for i := 0; i < m.rows; i++ {
		row := m.dense.RawRowView(i)
		if floats.Min(row) < 0 {
			return false
		}
		if !floats.EqualWithinAbs(floats.Sum(row), 1, tol) {
			return false
		}
	}
	return true
}

// Weight is one outgoing weight of a source token.
type Weight struct {
	Target int
	Weight float64
}

// Ranked returns the outgoing weights of source i sorted by decreasing weight.
// Ties keep target order.
func (m *Matrix) Ranked(i int) []Weight {
	row := m.Row(i)
	ranked := make([]Weight, len(row))
	for j, w := range row {
		ranked[j] = Weight{Target: j, Weight: w}
	}
	slices.SortStableFunc(ranked, func(a, b Weight) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		}
		return 0
	})
	return ranked
}
