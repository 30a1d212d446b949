// Package layout places token labels on a bounded 2D viewport and keeps them apart with an
// iterative pairwise repulsion pass.
package layout

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
)

// Position is a point in viewport coordinates.
type Position struct {
	X, Y float64
}

// Distance returns the Euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Viewport is the closed rectangle [MinX, MaxX] x [MinY, MaxY] positions are kept in.
type Viewport struct {
	MinX float64 `yaml:"min_x"`
	MinY float64 `yaml:"min_y"`
	MaxX float64 `yaml:"max_x"`
	MaxY float64 `yaml:"max_y"`
}

// DefaultViewport is the drawing area of the context view.
var DefaultViewport = Viewport{MinX: 30, MinY: 30, MaxX: 470, MaxY: 370}

// Validate returns an error if the viewport is empty.
func (v Viewport) Validate() error {
	if !(v.MinX < v.MaxX) || !(v.MinY < v.MaxY) {
		return errors.Errorf("invalid viewport [%g,%g]x[%g,%g]", v.MinX, v.MaxX, v.MinY, v.MaxY)
	}
	return nil
}

// Clamp returns p moved to the closest point inside the viewport.
func (v Viewport) Clamp(p Position) Position {
	return Position{
		X: math.Max(v.MinX, math.Min(v.MaxX, p.X)),
		Y: math.Max(v.MinY, math.Min(v.MaxY, p.Y)),
	}
}

// Contains reports whether p is inside the viewport (boundary included).
func (v Viewport) Contains(p Position) bool {
	return p.X >= v.MinX && p.X <= v.MaxX && p.Y >= v.MinY && p.Y <= v.MaxY
}

// Params configures the collision resolution.
type Params struct {
	// MinSeparation is the distance below which two points repel each other.
	MinSeparation float64 `yaml:"min_separation"`

	// Strength (in (0, 1)) scales the correction: each point of a colliding pair moves
	// Strength * (MinSeparation - distance) away from the other.
	Strength float64 `yaml:"strength"`

	// MaxIterations bounds the number of full passes over all pairs.
	MaxIterations int `yaml:"max_iterations"`

	// Margin is the inset from the viewport of the box where Scatter draws initial positions.
	Margin float64 `yaml:"margin"`
}

// DefaultParams are the constants used by the context view.
var DefaultParams = Params{
	MinSeparation: 60,
	Strength:      0.5,
	MaxIterations: 10,
	Margin:        20,
}

// Validate returns an error if any parameter is out of range.
func (p Params) Validate() error {
	if p.MinSeparation <= 0 {
		return errors.Errorf("MinSeparation must be > 0, got %g", p.MinSeparation)
	}
	if p.Strength <= 0 || p.Strength >= 1 {
		return errors.Errorf("Strength must be in (0, 1), got %g", p.Strength)
	}
	if p.MaxIterations < 1 {
		return errors.Errorf("MaxIterations must be >= 1, got %d", p.MaxIterations)
	}
	if p.Margin < 0 {
		return errors.Errorf("Margin must be >= 0, got %g", p.Margin)
	}
	return nil
}

// Resolve returns a copy of points pushed apart so that, as far as MaxIterations passes allow,
// no two are closer than MinSeparation. It's deterministic.
//
// Pairs are visited in (i, j) order and adjusted in place, so later pairs of a pass see the
// earlier corrections. Every adjusted coordinate is clamped to the viewport. Coincident points
// (distance exactly 0) have no direction to be pushed along and are skipped.
//
// This is a best-effort relaxation: dense configurations near the boundary may keep some overlap.
func Resolve(points []Position, viewport Viewport, params Params) []Position {
	resolved := make([]Position, len(points))
	copy(resolved, points)
	for range params.MaxIterations {
		collided := false
		for i := 0; i < len(resolved); i++ {
			for j := i + 1; j < len(resolved); j++ {
				dx := resolved[j].X - resolved[i].X
				dy := resolved[j].Y - resolved[i].Y
				distance := math.Sqrt(dx*dx + dy*dy)
				if distance >= params.MinSeparation || distance == 0 {
					continue
				}
				collided = true
				force := (params.MinSeparation - distance) * params.Strength
				fx := dx / distance * force
				fy := dy / distance * force
				resolved[i] = viewport.Clamp(Position{X: resolved[i].X - fx, Y: resolved[i].Y - fy})
				resolved[j] = viewport.Clamp(Position{X: resolved[j].X + fx, Y: resolved[j].Y + fy})
			}
		}
		if !collided {
			break
		}
	}
	return resolved
}

// Scatter draws n positions uniformly in the viewport inset by params.Margin, then resolves
// collisions among them.
func Scatter(n int, viewport Viewport, params Params, rng *rand.Rand) []Position {
	points := make([]Position, n)
	width := viewport.MaxX - viewport.MinX - 2*params.Margin
	height := viewport.MaxY - viewport.MinY - 2*params.Margin
	for ii := range points {
		points[ii] = Position{
			X: viewport.MinX + params.Margin + rng.Float64()*width,
			Y: viewport.MinY + params.Margin + rng.Float64()*height,
		}
	}
	return Resolve(points, viewport, params)
}

// MinPairDistance returns the smallest distance between any two points, or +Inf if there are
// fewer than two.
func MinPairDistance(points []Position) float64 {
	best := math.Inf(1)
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			best = math.Min(best, points[i].Distance(points[j]))
		}
	}
	return best
}

// Bounds returns the axis-aligned bounding box of points as a Viewport.
// It returns the zero Viewport for no points.
func Bounds(points []Position) Viewport {
	if len(points) == 0 {
		return Viewport{}
	}
	b := Viewport{MinX: points[0].X, MaxX: points[0].X, MinY: points[0].Y, MaxY: points[0].Y}
	for _, p := range points[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}
