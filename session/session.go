// Package session holds the state of one tokenize-then-simulate cycle: the tokens of a text,
// their weights, initial and current positions, and the layer counter.
//
// A Session is owned by a single caller and isn't safe for concurrent use. A new text means a
// new Session: nothing is carried over.
//
// Example:
//
//	s, err := session.New("The beautiful flower so vibrant", config.Default(), seed)
//	if err != nil {
//		return err
//	}
//	err = s.Run(ctx, 4, func(f session.Frame) { draw(f.Previous, f.Current) })
package session

import (
	"context"
	"slices"
	"time"

	"github.com/gomlx/neuroweave/attention"
	"github.com/gomlx/neuroweave/config"
	"github.com/gomlx/neuroweave/layout"
	"github.com/gomlx/neuroweave/simulator"
	"github.com/gomlx/neuroweave/tokenizers/api"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrLayerLimit is returned when applying layers would take the layer counter past the
// configured maximum. Reset the session to apply more.
var ErrLayerLimit = errors.New("layer limit reached")

// Session of the simulation. Create it with New.
type Session struct {
	id      string
	cfg     *config.Config
	seed    uint64
	text    string
	tokens  []api.Token
	weights *attention.Matrix
	heads   []*attention.Matrix

	initial  []layout.Position
	current  []layout.Position
	previous []layout.Position // nil until a layer is applied.
	layer    int
	history  [][]layout.Position
}

// Option of New.
type Option func(o *options)

type options struct {
	tokenizer  api.Tokenizer
	affinities attention.AffinityTable
}

// WithTokenizer uses the given tokenizer instead of the one described by the configuration.
func WithTokenizer(tokenizer api.Tokenizer) Option {
	return func(o *options) {
		o.tokenizer = tokenizer
	}
}

// WithAffinities uses the given affinity table instead of the one described by the configuration.
func WithAffinities(table attention.AffinityTable) Option {
	return func(o *options) {
		o.affinities = table
	}
}

// New tokenizes text and creates its session: tokens are scattered randomly on the viewport,
// the layer weights are generated with cfg.Mode and cfg.Heads independent random heads are
// generated for inspection. Everything random derives from seed.
//
// Empty text isn't an error: it creates a session with no tokens where every operation is a no-op.
func New(text string, cfg *config.Config, seed uint64, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid session config")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.tokenizer == nil {
		tok, err := cfg.Tokenizer()
		if err != nil {
			return nil, err
		}
		o.tokenizer = tok
	}
	if o.affinities == nil && cfg.Mode == attention.ModeHeuristic {
		table, err := cfg.AffinityTable()
		if err != nil {
			return nil, err
		}
		o.affinities = table
	}

	s := &Session{
		id:     uuid.New().String(),
		cfg:    cfg,
		seed:   seed,
		text:   text,
		tokens: o.tokenizer.Tokenize(text),
	}
	rng := simulator.NewRand(seed)
	s.initial = layout.Scatter(len(s.tokens), cfg.Viewport, cfg.Collision, rng)
	s.current = slices.Clone(s.initial)
	var err error
	s.weights, err = attention.Generate(s.tokens, cfg.Mode, o.affinities, rng)
	if err != nil {
		return nil, err
	}
	s.heads = attention.Heads(len(s.tokens), cfg.Heads, rng)
	klog.V(1).Infof("session %s: %d tokens, mode=%s, heads=%d, seed=%d", s.id, len(s.tokens), cfg.Mode, cfg.Heads, seed)
	return s, nil
}

// ID uniquely identifies the session.
func (s *Session) ID() string { return s.id }

// Seed the session was created with.
func (s *Session) Seed() uint64 { return s.seed }

// Text the session was created from.
func (s *Session) Text() string { return s.text }

// Config of the session.
func (s *Session) Config() *config.Config { return s.cfg }

// Len returns the number of tokens.
func (s *Session) Len() int { return len(s.tokens) }

// Tokens returns a copy of the tokens.
func (s *Session) Tokens() []api.Token { return slices.Clone(s.tokens) }

// Weights returns the matrix used by every layer.
func (s *Session) Weights() *attention.Matrix { return s.weights }

// Heads returns the independent random heads of the attention view.
func (s *Session) Heads() []*attention.Matrix { return slices.Clone(s.heads) }

// Layer returns the number of layers applied since creation or the last Reset.
func (s *Session) Layer() int { return s.layer }

// MaxLayers returns the configured bound of Layer.
func (s *Session) MaxLayers() int { return s.cfg.MaxLayers }

// Initial returns a copy of the initial positions. They never change during the session.
func (s *Session) Initial() []layout.Position { return slices.Clone(s.initial) }

// Current returns a copy of the current positions.
func (s *Session) Current() []layout.Position { return slices.Clone(s.current) }

// Previous returns a copy of the positions before the last applied layer, or nil if no layer
// was applied since creation or the last Reset.
func (s *Session) Previous() []layout.Position { return slices.Clone(s.previous) }

// History returns the positions after each applied layer, oldest first.
func (s *Session) History() [][]layout.Position {
	history := make([][]layout.Position, len(s.history))
	for ii, positions := range s.history {
		history[ii] = slices.Clone(positions)
	}
	return history
}

// Frame is the transition of one layer, for rendering.
type Frame struct {
	Layer    int // 1-based layer counter after the transition.
	Previous []layout.Position
	Current  []layout.Position
}

// state is the mutable part of a Session, so a run can work on a private copy.
type state struct {
	current  []layout.Position
	previous []layout.Position
	layer    int
	history  [][]layout.Position
}

func (s *Session) snapshot() *state {
	return &state{
		current:  slices.Clone(s.current),
		previous: slices.Clone(s.previous),
		layer:    s.layer,
		history:  slices.Clone(s.history),
	}
}

func (s *Session) commit(st *state) {
	s.current = st.current
	s.previous = st.previous
	s.layer = st.layer
	s.history = st.history
}

// checkLayers validates a request to apply layers more layers.
func (s *Session) checkLayers(layers int) error {
	if layers < 1 {
		return errors.Errorf("number of layers must be >= 1, got %d", layers)
	}
	if s.layer+layers > s.cfg.MaxLayers {
		return errors.WithMessagef(ErrLayerLimit, "%d layers applied, can't apply %d more (max %d)", s.layer, layers, s.cfg.MaxLayers)
	}
	return nil
}

// step applies one layer to st.
func (s *Session) step(st *state) (Frame, error) {
	next, err := simulator.ApplyLayer(s.weights, st.current, s.cfg.Viewport, s.cfg.Collision)
	if err != nil {
		return Frame{}, errors.WithMessagef(err, "session %s, layer %d", s.id, st.layer+1)
	}
	st.previous = st.current
	st.current = next
	st.layer++
	st.history = append(st.history, next)
	klog.V(2).Infof("session %s: layer %d applied", s.id, st.layer)
	return Frame{Layer: st.layer, Previous: slices.Clone(st.previous), Current: slices.Clone(next)}, nil
}

// Apply runs layers layers back to back. It returns an error wrapping ErrLayerLimit if the layer
// counter would exceed MaxLayers. With no tokens it does nothing.
func (s *Session) Apply(layers int) error {
	if len(s.tokens) == 0 {
		return nil
	}
	if err := s.checkLayers(layers); err != nil {
		return err
	}
	st := s.snapshot()
	for range layers {
		if _, err := s.step(st); err != nil {
			return err
		}
	}
	s.commit(st)
	return nil
}

// Run is like Apply, but paced for presentation: it waits the configured LayerPause between
// layers and calls onFrame (if not nil) after each one.
//
// If ctx is cancelled before the last layer, Run returns ctx.Err() and the session is left as
// it was before the call: partial results are discarded.
func (s *Session) Run(ctx context.Context, layers int, onFrame func(Frame)) error {
	if len(s.tokens) == 0 {
		return nil
	}
	if err := s.checkLayers(layers); err != nil {
		return err
	}
	st := s.snapshot()
	for layer := range layers {
		if layer > 0 {
			if err := pause(ctx, s.cfg.LayerPause); err != nil {
				klog.V(1).Infof("session %s: run abandoned after %d of %d layers", s.id, layer, layers)
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := s.step(st)
		if err != nil {
			return err
		}
		if onFrame != nil {
			onFrame(frame)
		}
	}
	s.commit(st)
	return nil
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset restores every current position to its initial position and sets the layer counter to 0.
func (s *Session) Reset() {
	s.current = slices.Clone(s.initial)
	s.previous = nil
	s.layer = 0
	s.history = nil
	klog.V(1).Infof("session %s: reset", s.id)
}

// Attention is one outgoing weight of an inspected token.
type Attention struct {
	Target int
	Text   string
	Weight float64
}

// Inspect returns the outgoing weights of token i (of the layer weights), strongest first.
func (s *Session) Inspect(i int) ([]Attention, error) {
	return s.inspect(s.weights, i)
}

// InspectHead is like Inspect, for one of the random heads.
func (s *Session) InspectHead(head, i int) ([]Attention, error) {
	if head < 0 || head >= len(s.heads) {
		return nil, errors.Errorf("head %d out of range [0, %d)", head, len(s.heads))
	}
	return s.inspect(s.heads[head], i)
}

func (s *Session) inspect(m *attention.Matrix, i int) ([]Attention, error) {
	if i < 0 || i >= len(s.tokens) {
		return nil, errors.Errorf("token %d out of range [0, %d)", i, len(s.tokens))
	}
	ranked := m.Ranked(i)
	result := make([]Attention, len(ranked))
	for ii, w := range ranked {
		result[ii] = Attention{Target: w.Target, Text: s.tokens[w.Target].Text, Weight: w.Weight}
	}
	return result, nil
}

// Aggregate returns the mean of the random heads.
func (s *Session) Aggregate() (*attention.Matrix, error) {
	return attention.Aggregate(s.heads)
}

// DominantHeads returns, for every (source, target) pair, the index of the head with the largest weight.
func (s *Session) DominantHeads() [][]int {
	return attention.DominantHeads(s.heads)
}
