package attention

import (
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"github.com/gomlx/neuroweave/tokenizers/api"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// HeuristicBase is the upper bound (exclusive) of the uniform noise of every heuristic cell.
	HeuristicBase = 0.3

	// HeuristicBonus is added to a cell when the target is listed as related to the source.
	HeuristicBonus = 0.4
)

// AffinityTable maps a lower-case source word to the words it's semantically related to.
// Associations are directional: they hold as listed.
type AffinityTable map[string][]string

// DefaultAffinities returns a fresh copy of the curated table. Function words are present
// with no associations, so they only carry base noise.
func DefaultAffinities() AffinityTable {
	return AffinityTable{
		"beautiful": {"flower", "vibrant", "colorful", "amazing"},
		"flower":    {"beautiful", "vibrant", "petal", "bloom"},
		"so":        {"vibrant", "beautiful", "very", "really"},
		"vibrant":   {"beautiful", "flower", "colorful", "bright"},
		"the":       {},
		"a":         {},
		"an":        {},
		"and":       {},
		"but":       {},
		"or":        {},
		"in":        {},
		"on":        {},
		"at":        {},
		"to":        {},
		"for":       {},
	}
}

// LoadAffinities reads an AffinityTable from a YAML file mapping words to lists of words.
// Words are lower-cased.
func LoadAffinities(filePath string) (AffinityTable, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read affinity table %q", filePath)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to parse affinity table %q", filePath)
	}
	table := make(AffinityTable, len(raw))
	for word, related := range raw {
		lowered := make([]string, len(related))
		for ii, r := range related {
			lowered[ii] = strings.ToLower(r)
		}
		table[strings.ToLower(word)] = lowered
	}
	return table, nil
}

// Related reports whether target is listed as related to source, ignoring case.
func (t AffinityTable) Related(source, target string) bool {
	return slices.Contains(t[strings.ToLower(source)], strings.ToLower(target))
}

// Heuristic generates a head where each cell is uniform noise in [0, HeuristicBase), plus
// HeuristicBonus when the target token is related to the source token in table.
// Rows are then normalized. A nil table uses DefaultAffinities.
func Heuristic(tokens []api.Token, table AffinityTable, rng *rand.Rand) *Matrix {
	if table == nil {
		table = DefaultAffinities()
	}
	n := len(tokens)
	data := make([]float64, n*n)
	for i, source := range tokens {
		for j, target := range tokens {
			w := rng.Float64() * HeuristicBase
			if table.Related(source.Text, target.Text) {
				w += HeuristicBonus
			}
			data[i*n+j] = w
		}
	}
	return newMatrix(n, n, data)
}

// Mode selects how a head is generated.
type Mode int

const (
	ModeRandom Mode = iota
	ModeHeuristic
)

var modeNames = []string{"random", "heuristic"}

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "Mode(unknown)"
	}
	return modeNames[m]
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for ii, n := range modeNames {
		if n == name {
			*m = Mode(ii)
			return nil
		}
	}
	return errors.Errorf("unknown attention mode %q, valid modes are %v", string(text), modeNames)
}

// Generate returns a head for tokens in the given mode. The table is only used by ModeHeuristic.
func Generate(tokens []api.Token, mode Mode, table AffinityTable, rng *rand.Rand) (*Matrix, error) {
	switch mode {
	case ModeRandom:
		return Random(len(tokens), len(tokens), rng), nil
	case ModeHeuristic:
		return Heuristic(tokens, table, rng), nil
	}
	return nil, errors.Errorf("unknown attention mode %d", int(mode))
}
