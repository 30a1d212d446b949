package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/neuroweave/layout"
	"github.com/gomlx/neuroweave/tokenizers/api"
)

// markers label tokens on the canvas, by index.
const markers = "0123456789abcdefghijklmnopqrstuvwxyz"

// Overlap marks a canvas cell shared by more than one token.
const Overlap = '*'

// Marker returns the canvas marker of token i: its index in base 36, or '+' past the 36th token.
func Marker(i int) rune {
	if i >= 0 && i < len(markers) {
		return rune(markers[i])
	}
	return '+'
}

// Cell maps p to a (col, row) of a cols x rows grid covering viewport. Points outside are clamped
// to the border.
func Cell(p layout.Position, viewport layout.Viewport, cols, rows int) (col, row int) {
	p = viewport.Clamp(p)
	scale := func(v, lo, hi float64, n int) int {
		if n <= 1 || hi <= lo {
			return 0
		}
		return int(math.Round((v - lo) / (hi - lo) * float64(n-1)))
	}
	return scale(p.X, viewport.MinX, viewport.MaxX, cols), scale(p.Y, viewport.MinY, viewport.MaxY, rows)
}

// Grid places the marker of every point on a cols x rows grid of runes. Empty cells are '.'.
func Grid(points []layout.Position, viewport layout.Viewport, cols, rows int) [][]rune {
	cols, rows = max(cols, 1), max(rows, 1)
	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(".", cols))
	}
	for ii, p := range points {
		col, row := Cell(p, viewport, cols, rows)
		if grid[row][col] == '.' {
			grid[row][col] = Marker(ii)
		} else {
			grid[row][col] = Overlap
		}
	}
	return grid
}

// Canvas renders points inside a frame, followed by a legend mapping markers to tokens.
func Canvas(styles Styles, title string, tokens []api.Token, points []layout.Position, viewport layout.Viewport, cols, rows int) string {
	grid := Grid(points, viewport, cols, rows)
	lines := make([]string, len(grid))
	for r, line := range grid {
		var sb strings.Builder
		for _, c := range line {
			switch {
			case c == '.':
				sb.WriteString(styles.Faint.Render("·"))
			case c == Overlap:
				sb.WriteString(lipgloss.NewStyle().Bold(true).Render(string(c)))
			default:
				i := strings.IndexRune(markers, c)
				style := styles.Word
				if i >= 0 && i < len(tokens) {
					style = styles.Chip(tokens[i].Type)
				}
				sb.WriteString(lipgloss.NewStyle().Foreground(style.GetForeground()).Bold(true).Render(string(c)))
			}
		}
		lines[r] = sb.String()
	}
	body := styles.Frame.Render(strings.Join(lines, "\n"))

	legend := make([]string, 0, len(tokens))
	for ii, token := range tokens {
		if ii < len(points) {
			legend = append(legend, fmt.Sprintf("%c=%s", Marker(ii), token.Text))
		}
	}
	parts := []string{}
	if title != "" {
		parts = append(parts, styles.Title.Render(title))
	}
	parts = append(parts, body, styles.Label.Render(strings.Join(legend, "  ")))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Transition renders the previous and current positions side by side.
func Transition(styles Styles, layer int, tokens []api.Token, previous, current []layout.Position, viewport layout.Viewport, cols, rows int) string {
	left := Canvas(styles, fmt.Sprintf("before layer %d", layer), tokens, previous, viewport, cols, rows)
	right := Canvas(styles, fmt.Sprintf("after layer %d", layer), tokens, current, viewport, cols, rows)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}
