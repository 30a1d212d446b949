package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/neuroweave/attention"
	"github.com/gomlx/neuroweave/encdec"
)

// Decoder renders the encoder tokens, the tokens decoded so far and the cross-attention of the
// last decoded token over the encoder.
func Decoder(styles Styles, d *encdec.Decoder, barWidth int) string {
	encoder := d.Encoder()
	decoded := d.Decoded()
	parts := []string{
		styles.Title.Render("Encoder"),
		Tokens(styles, encoder, -1),
		styles.Title.Render("Decoder"),
		Tokens(styles, decoded, len(decoded)-1),
	}
	if len(decoded) > 0 {
		step := len(decoded) - 1
		if row, err := d.Attention(step); err == nil {
			weights := make([]attention.Weight, len(row))
			for jj, w := range row {
				weights[jj] = attention.Weight{Target: jj, Weight: w}
			}
			parts = append(parts,
				styles.Label.Render("cross-attention of \""+decoded[step].Text+"\""),
				Bars(styles, encoder, weights, barWidth))
		}
	}
	if d.Done() && len(decoded) > 0 {
		parts = append(parts, styles.Faint.Render("(done)"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
