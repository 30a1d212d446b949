// Package render draws sessions and decoders for a terminal, using lipgloss.
//
// Nothing here changes any state: every function takes a snapshot (tokens, weights, positions)
// and returns a string.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/neuroweave/attention"
	"github.com/gomlx/neuroweave/tokenizers/api"
)

// Styles used by the views.
type Styles struct {
	Word, Number, Punctuation lipgloss.Style

	// Active highlights the inspected token.
	Active lipgloss.Style

	Title, Label, Bar, Faint lipgloss.Style
	Frame                    lipgloss.Style
}

// DefaultStyles uses blue chips for words, green for numbers and purple for punctuation.
func DefaultStyles() Styles {
	chip := lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	return Styles{
		Word:        chip.BorderForeground(lipgloss.Color("12")).Foreground(lipgloss.Color("12")),
		Number:      chip.BorderForeground(lipgloss.Color("10")).Foreground(lipgloss.Color("10")),
		Punctuation: chip.BorderForeground(lipgloss.Color("13")).Foreground(lipgloss.Color("13")),
		Active:      chip.BorderStyle(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("12")).Bold(true),
		Title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Label:       lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		Bar:         lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Faint:       lipgloss.NewStyle().Faint(true),
		Frame:       lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("8")),
	}
}

// Chip returns the style of a token of the given type.
func (s Styles) Chip(tokenType api.TokenType) lipgloss.Style {
	switch tokenType {
	case api.TypeWord:
		return s.Word
	case api.TypeNumber:
		return s.Number
	default:
		return s.Punctuation
	}
}

// Tokens renders tokens as a row of chips coloured by type. If active is a valid index, that
// token is highlighted.
func Tokens(styles Styles, tokens []api.Token, active int) string {
	if len(tokens) == 0 {
		return styles.Faint.Render("(no tokens)")
	}
	chips := make([]string, len(tokens))
	for ii, token := range tokens {
		style := styles.Chip(token.Type)
		if ii == active {
			style = styles.Active
		}
		chips[ii] = style.Render(token.Text)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

// TokenTable lists tokens one per line with their index, type and span.
func TokenTable(styles Styles, tokens []api.Token) string {
	var sb strings.Builder
	for _, token := range tokens {
		fmt.Fprintf(&sb, "%3d  %s %s %s\n", token.ID,
			padRight(lipgloss.NewStyle().Foreground(styles.Chip(token.Type).GetForeground()).Render(token.Text), 12),
			styles.Label.Render(token.Type.String()),
			styles.Faint.Render(fmt.Sprintf("[%d:%d]", token.Span.Start, token.Span.End)))
	}
	return sb.String()
}

// Bars renders the weights of one inspected row as horizontal bars of at most width cells,
// labelled with the target token text and the weight as a percentage.
func Bars(styles Styles, tokens []api.Token, weights []attention.Weight, width int) string {
	width = max(width, 1)
	labelWidth := 0
	for _, w := range weights {
		labelWidth = max(labelWidth, lipgloss.Width(tokenText(tokens, w.Target)))
	}
	var sb strings.Builder
	for _, w := range weights {
		cells := int(w.Weight*float64(width) + 0.5)
		cells = min(max(cells, 0), width)
		label := tokenText(tokens, w.Target)
		fmt.Fprintf(&sb, "%s%s %s%s %5.1f%%\n",
			styles.Label.Render(label), strings.Repeat(" ", labelWidth-lipgloss.Width(label)),
			styles.Bar.Render(strings.Repeat("█", cells)), strings.Repeat(" ", width-cells),
			100*w.Weight)
	}
	return sb.String()
}

// Matrix renders a weight matrix as a grid with two decimals per cell. Rows are labelled with
// rowTokens and columns with colTokens; either may be shorter than the matrix, in which case
// the index is used.
func Matrix(styles Styles, m *attention.Matrix, rowTokens, colTokens []api.Token) string {
	rows, cols := m.Dims()
	labels := make([]string, rows)
	labelWidth := 0
	for ii := range rows {
		labels[ii] = tokenText(rowTokens, ii)
		labelWidth = max(labelWidth, lipgloss.Width(labels[ii]))
	}
	cellWidth := 5
	for jj := range cols {
		cellWidth = max(cellWidth, lipgloss.Width(tokenText(colTokens, jj))+1)
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", labelWidth))
	for jj := range cols {
		sb.WriteString(styles.Label.Render(padLeft(tokenText(colTokens, jj), cellWidth)))
	}
	sb.WriteByte('\n')
	for ii := range rows {
		sb.WriteString(styles.Label.Render(labels[ii]))
		sb.WriteString(strings.Repeat(" ", labelWidth-lipgloss.Width(labels[ii])))
		for jj := range cols {
			cell := padLeft(fmt.Sprintf("%.2f", m.At(ii, jj)), cellWidth)
			if m.At(ii, jj) >= 0.5 {
				cell = styles.Bar.Bold(true).Render(cell)
			}
			sb.WriteString(cell)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DominantHeads renders, for every (source, target) pair, the index of the head with the largest weight.
func DominantHeads(styles Styles, dominant [][]int, tokens []api.Token) string {
	var sb strings.Builder
	for ii, row := range dominant {
		sb.WriteString(styles.Label.Render(padRight(tokenText(tokens, ii), 12)))
		for _, head := range row {
			fmt.Fprintf(&sb, " h%d", head)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func tokenText(tokens []api.Token, i int) string {
	if i >= 0 && i < len(tokens) {
		return tokens[i].Text
	}
	return fmt.Sprintf("#%d", i)
}

func padLeft(s string, width int) string {
	return strings.Repeat(" ", max(width-lipgloss.Width(s), 0)) + s
}

func padRight(s string, width int) string {
	return s + strings.Repeat(" ", max(width-lipgloss.Width(s), 0))
}
