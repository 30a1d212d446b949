// Package replay exports the position history of a session to a Parquet file, so a front end
// can replay the animation, and reads it back.
//
// Each row is one token at one layer; layer 0 holds the initial positions.
package replay

import (
	"context"
	"slices"

	"github.com/gomlx/neuroweave/layout"
	"github.com/gomlx/neuroweave/session"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrExists is returned by Export when the file already exists and force is false.
var ErrExists = errors.New("file already exists")

// Row of a replay file.
type Row struct {
	Session string  `parquet:"session"`
	Seed    uint64  `parquet:"seed"`
	Layer   int32   `parquet:"layer"`
	Token   int32   `parquet:"token"`
	Text    string  `parquet:"text"`
	Type    string  `parquet:"type"`
	X       float64 `parquet:"x"`
	Y       float64 `parquet:"y"`
}

// Rows flattens the initial positions and the history of s, ordered by layer then token.
func Rows(s *session.Session) []Row {
	tokens := s.Tokens()
	layers := append([][]layout.Position{s.Initial()}, s.History()...)
	rows := make([]Row, 0, len(layers)*len(tokens))
	for layer, positions := range layers {
		for ii, p := range positions {
			rows = append(rows, Row{
				Session: s.ID(),
				Seed:    s.Seed(),
				Layer:   int32(layer),
				Token:   int32(ii),
				Text:    tokens[ii].Text,
				Type:    tokens[ii].Type.String(),
				X:       p.X,
				Y:       p.Y,
			})
		}
	}
	return rows
}

// Export writes Rows(s) to filePath. If the file exists it's only overwritten when force is true.
func Export(ctx context.Context, filePath string, s *session.Session, force bool) error {
	rows := Rows(s)
	err := lockedWrite(ctx, filePath, force, func(tmpPath string) error {
		return parquet.WriteFile(tmpPath, rows)
	})
	if err != nil {
		return errors.WithMessagef(err, "exporting session %s", s.ID())
	}
	klog.V(1).Infof("session %s: exported %d rows to %q", s.ID(), len(rows), filePath)
	return nil
}

// Import reads the rows of a replay file.
func Import(filePath string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read replay file %q", filePath)
	}
	return rows, nil
}

// Layers groups rows back into positions per layer (index 0 is the initial layout).
// Rows may come in any order, but every layer must have the same tokens 0..n-1.
func Layers(rows []Row) ([][]layout.Position, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	sorted := slices.Clone(rows)
	slices.SortFunc(sorted, func(a, b Row) int {
		if a.Layer != b.Layer {
			return int(a.Layer - b.Layer)
		}
		return int(a.Token - b.Token)
	})
	numLayers := int(sorted[len(sorted)-1].Layer) + 1
	if len(sorted)%numLayers != 0 {
		return nil, errors.Errorf("%d rows can't be split evenly into %d layers", len(sorted), numLayers)
	}
	numTokens := len(sorted) / numLayers
	layers := make([][]layout.Position, numLayers)
	for ii, row := range sorted {
		layer, token := ii/numTokens, ii%numTokens
		if int(row.Layer) != layer || int(row.Token) != token {
			return nil, errors.Errorf("missing token %d of layer %d", token, layer)
		}
		layers[layer] = append(layers[layer], layout.Position{X: row.X, Y: row.Y})
	}
	return layers, nil
}
