package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gomlx/neuroweave/attention"
	"github.com/gomlx/neuroweave/encdec"
	"github.com/gomlx/neuroweave/render"
	"github.com/gomlx/neuroweave/replay"
	"github.com/gomlx/neuroweave/session"
	"github.com/pkg/errors"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func cmdTokenize(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("tokenize")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := text(fs)
	if err != nil {
		return err
	}
	tokens := a.tok.Tokenize(t)
	fmt.Fprintln(a.out, render.Tokens(a.styles, tokens, -1))
	fmt.Fprint(a.out, render.TokenTable(a.styles, tokens))
	fmt.Fprintf(a.out, "%d tokens\n", len(tokens))
	return nil
}

func cmdAttention(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("attention")
	view := fs.String("view", "single", `"single" shows one head, "all" the mean of the heads and the dominant head of each pair.`)
	head := fs.Int("head", 0, "Head shown with -view=single.")
	inspect := fs.Int("inspect", -1, "Index of a token whose outgoing weights are listed.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := text(fs)
	if err != nil {
		return err
	}
	s, err := session.New(t, a.cfg, a.seed, session.WithTokenizer(a.tok))
	if err != nil {
		return err
	}
	if s.Len() == 0 {
		fmt.Fprintln(a.out, render.Tokens(a.styles, nil, -1))
		return nil
	}
	heads := s.Heads()
	if *head < 0 || *head >= len(heads) {
		return errors.Errorf("-head=%d out of range [0, %d)", *head, len(heads))
	}

	tokens := s.Tokens()
	fmt.Fprintln(a.out, render.Tokens(a.styles, tokens, *inspect))
	var m *attention.Matrix
	switch *view {
	case "single":
		m = heads[*head]
		fmt.Fprintln(a.out, a.styles.Title.Render(fmt.Sprintf("Head %d of %d", *head, len(heads))))
		fmt.Fprint(a.out, render.Matrix(a.styles, m, tokens, tokens))
	case "all":
		if m, err = s.Aggregate(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, a.styles.Title.Render(fmt.Sprintf("Mean of %d heads", len(heads))))
		fmt.Fprint(a.out, render.Matrix(a.styles, m, tokens, tokens))
		fmt.Fprintln(a.out, a.styles.Title.Render("Dominant head"))
		fmt.Fprint(a.out, render.DominantHeads(a.styles, s.DominantHeads(), tokens))
	default:
		return errors.Errorf("-view must be \"single\" or \"all\", got %q", *view)
	}
	if *inspect >= 0 {
		if *inspect >= s.Len() {
			return errors.Errorf("-inspect=%d out of range [0, %d)", *inspect, s.Len())
		}
		fmt.Fprintln(a.out, a.styles.Title.Render(fmt.Sprintf("From %q", tokens[*inspect].Text)))
		fmt.Fprint(a.out, render.Bars(a.styles, tokens, m.Ranked(*inspect), 30))
	}
	return nil
}

func cmdContext(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("context")
	layers := fs.Int("layers", a.cfg.MaxLayers, "Number of layers to apply.")
	pause := fs.Duration("pause", a.cfg.LayerPause, "Pause between layers.")
	inspect := fs.Int("inspect", -1, "Index of a token whose outgoing weights are listed.")
	export := fs.String("export", "", "Parquet file where the position history is written.")
	force := fs.Bool("force", false, "Overwrite the -export file if it exists.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := text(fs)
	if err != nil {
		return err
	}
	cfg := *a.cfg
	cfg.LayerPause = *pause
	s, err := session.New(t, &cfg, a.seed, session.WithTokenizer(a.tok))
	if err != nil {
		return err
	}
	if s.Len() == 0 {
		fmt.Fprintln(a.out, render.Tokens(a.styles, nil, -1))
		return nil
	}

	tokens := s.Tokens()
	fmt.Fprintln(a.out, render.Tokens(a.styles, tokens, *inspect))
	fmt.Fprintln(a.out, render.Canvas(a.styles, "initial layout", tokens, s.Initial(), cfg.Viewport, a.cols, a.rows))
	start := time.Now()
	err = s.Run(ctx, *layers, func(f session.Frame) {
		fmt.Fprintln(a.out, render.Transition(a.styles, f.Layer, tokens, f.Previous, f.Current, cfg.Viewport, a.cols, a.rows))
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d layers applied in %s\n", s.Layer(), time.Since(start).Round(time.Millisecond))

	if *inspect >= 0 {
		weights, err := s.Inspect(*inspect)
		if err != nil {
			return err
		}
		ranked := make([]attention.Weight, len(weights))
		for ii, w := range weights {
			ranked[ii] = attention.Weight{Target: w.Target, Weight: w.Weight}
		}
		fmt.Fprintln(a.out, a.styles.Title.Render(fmt.Sprintf("From %q", tokens[*inspect].Text)))
		fmt.Fprint(a.out, render.Bars(a.styles, tokens, ranked, 30))
	}

	if *export != "" {
		if err := replay.Export(ctx, *export, s, *force); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "history written to %s\n", *export)
	}
	return nil
}

func cmdEncDec(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("encdec")
	tablePath := fs.String("table", "", "JSON file with the response table. The built-in table is used if empty.")
	pause := fs.Duration("pause", a.cfg.LayerPause, "Pause between decoded tokens.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := text(fs)
	if err != nil {
		return err
	}
	var table *encdec.Table
	if *tablePath != "" {
		content, err := os.ReadFile(*tablePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read table %q", *tablePath)
		}
		if table, err = encdec.LoadTable(content); err != nil {
			return errors.WithMessagef(err, "table %q", *tablePath)
		}
	}
	d := encdec.NewDecoder(table, a.tok, a.seed)
	if !d.Encode(t) {
		fmt.Fprintln(a.out, render.Tokens(a.styles, nil, -1))
		return nil
	}
	fmt.Fprintln(a.out, render.Decoder(a.styles, d, 30))
	for {
		if _, ok := d.Next(); !ok {
			return nil
		}
		if err := wait(ctx, *pause); err != nil {
			return err
		}
		fmt.Fprintln(a.out, render.Decoder(a.styles, d, 30))
	}
}

// wait for d, or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
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
