package attention

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// Heads generates count independent random n x n heads.
// There is no enforced diversity between heads.
func Heads(n, count int, rng *rand.Rand) []*Matrix {
	heads := make([]*Matrix, count)
	for h := range heads {
		heads[h] = Random(n, n, rng)
	}
	return heads
}

// DominantHead returns the index of the head with the largest weight at (i, j).
// The first head wins ties.
func DominantHead(heads []*Matrix, i, j int) int {
	best := 0
	for h := 1; h < len(heads); h++ {
		if heads[h].At(i, j) > heads[best].At(i, j) {
			best = h
		}
	}
	return best
}

// DominantHeads returns DominantHead for every (source, target) pair.
func DominantHeads(heads []*Matrix) [][]int {
	if len(heads) == 0 {
		return nil
	}
	rows, cols := heads[0].Dims()
	dominant := make([][]int, rows)
	for i := range dominant {
		dominant[i] = make([]int, cols)
		for j := range dominant[i] {
			dominant[i][j] = DominantHead(heads, i, j)
		}
	}
	return dominant
}

// Aggregate returns the element-wise mean of heads, which is itself row-stochastic.
// All heads must have the same dimensions.
func Aggregate(heads []*Matrix) (*Matrix, error) {
	if len(heads) == 0 {
		return nil, errors.New("Aggregate requires at least one head")
	}
	rows, cols := heads[0].Dims()
	data := make([]float64, rows*cols)
	for h, head := range heads {
		if r, c := head.Dims(); r != rows || c != cols {
			return nil, errors.Errorf("head %d is %dx%d, expected %dx%d", h, r, c, rows, cols)
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				data[i*cols+j] += head.At(i, j)
			}
		}
	}
	return newMatrix(rows, cols, data), nil
}

// CrossAttention returns a rows x cols matrix relating decoder positions (rows) to encoder
// tokens (columns), generated like a random head.
func CrossAttention(rows, cols int, rng *rand.Rand) *Matrix {
	return Random(rows, cols, rng)
}
