// Package config holds the settings of a simulation session and loads them from YAML.
//
// Example config file, with the default values:
//
//	mode: heuristic
//	heads: 3
//	max_layers: 4
//	layer_pause: 600ms
//	subwords: false
//	normalization: none
//	viewport: {min_x: 30, min_y: 30, max_x: 470, max_y: 370}
//	collision: {min_separation: 60, strength: 0.5, max_iterations: 10, margin: 20}
//	affinities: ""   # optional YAML file with the heuristic affinity table
package config

import (
	"os"
	"time"

	"github.com/gomlx/neuroweave/attention"
	"github.com/gomlx/neuroweave/layout"
	"github.com/gomlx/neuroweave/tokenizers/wordsplit"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MaxLayersLimit is the largest accepted value for Config.MaxLayers.
const MaxLayersLimit = 4

// Config of a session.
type Config struct {
	// Mode used to generate the weights that move the tokens.
	Mode attention.Mode `yaml:"mode"`

	// Heads is the number of independent random heads generated for the attention view.
	Heads int `yaml:"heads"`

	// MaxLayers bounds the layer counter of a session, in [1, MaxLayersLimit].
	MaxLayers int `yaml:"max_layers"`

	// LayerPause is the presentation delay between layers of a paced run.
	LayerPause time.Duration `yaml:"layer_pause"`

	// Subwords enables the naive subword split of the tokenizer.
	Subwords bool `yaml:"subwords"`

	// Normalization is the Unicode normalization form applied before tokenizing: "none", "NFC", "NFD", "NFKC", "NFKD".
	Normalization string `yaml:"normalization"`

	Viewport  layout.Viewport `yaml:"viewport"`
	Collision layout.Params   `yaml:"collision"`

	// Affinities is an optional YAML file with the affinity table of the heuristic mode.
	Affinities string `yaml:"affinities"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Mode:          attention.ModeHeuristic,
		Heads:         3,
		MaxLayers:     MaxLayersLimit,
		LayerPause:    600 * time.Millisecond,
		Normalization: "none",
		Viewport:      layout.DefaultViewport,
		Collision:     layout.DefaultParams,
	}
}

// Load reads a YAML file on top of the defaults. Fields missing from the file keep their default.
func Load(filePath string) (*Config, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %q", filePath)
	}
	return Parse(content)
}

// Parse decodes YAML content on top of the defaults and validates the result.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if c.MaxLayers < 1 || c.MaxLayers > MaxLayersLimit {
		return errors.Errorf("max_layers must be in [1, %d], got %d", MaxLayersLimit, c.MaxLayers)
	}
	if c.Heads < 1 {
		return errors.Errorf("heads must be >= 1, got %d", c.Heads)
	}
	if c.LayerPause < 0 {
		return errors.Errorf("layer_pause must be >= 0, got %s", c.LayerPause)
	}
	if _, _, err := wordsplit.ParseNormalization(c.Normalization); err != nil {
		return err
	}
	if err := c.Viewport.Validate(); err != nil {
		return errors.WithMessage(err, "viewport")
	}
	if err := c.Collision.Validate(); err != nil {
		return errors.WithMessage(err, "collision")
	}
	return nil
}

// Tokenizer builds the tokenizer described by the configuration.
func (c *Config) Tokenizer() (*wordsplit.Tokenizer, error) {
	options := []wordsplit.Option{wordsplit.WithSubwords(c.Subwords)}
	form, ok, err := wordsplit.ParseNormalization(c.Normalization)
	if err != nil {
		return nil, err
	}
	if ok {
		options = append(options, wordsplit.WithNormalization(form))
	}
	return wordsplit.New(options...), nil
}

// AffinityTable loads the configured affinity table, or returns the default one.
func (c *Config) AffinityTable() (attention.AffinityTable, error) {
	if c.Affinities == "" {
		return attention.DefaultAffinities(), nil
	}
	return attention.LoadAffinities(c.Affinities)
}
