// neuroweave animates the conceptual stages of a transformer on the terminal: tokenization,
// attention weights, contextual repositioning and encoder-decoder cross-attention.
//
// Usage:
//
//	neuroweave [-config file.yaml] [-seed N] [-subwords] <command> [command flags] <text>
//
// Commands:
//
//	tokenize   split the text into tokens
//	attention  show the random attention heads
//	context    move the tokens through the layers of attention
//	encdec     decode a response to the text, one token at a time
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"

	"github.com/gomlx/neuroweave/config"
	"github.com/gomlx/neuroweave/render"
	"github.com/gomlx/neuroweave/tokenizers/api"
	"github.com/gomlx/neuroweave/tokenizers/wordsplit"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// app holds the global flags and what's derived from them.
type app struct {
	out    io.Writer
	cfg    *config.Config
	seed   uint64
	tok    api.Tokenizer
	styles render.Styles
	cols   int
	rows   int
}

type command struct {
	name, help string
	run        func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"tokenize", "split the text into tokens", cmdTokenize},
	{"attention", "show the random attention heads", cmdAttention},
	{"context", "move the tokens through the layers of attention", cmdContext},
	{"encdec", "decode a response to the text, one token at a time", cmdEncDec},
}

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := run(ctx, flag.CommandLine, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		klog.Flush()
		fmt.Fprintf(os.Stderr, "neuroweave: %+v\n", err)
		os.Exit(1)
	}
}

// run parses the global flags from args on fs and runs the selected command.
func run(ctx context.Context, fs *flag.FlagSet, args []string, out io.Writer) error {
	var (
		flagConfig   = fs.String("config", "", "YAML configuration file. Defaults are used if empty.")
		flagSeed     = fs.Uint64("seed", 0, "Seed of every random draw. If 0 a random seed is picked and printed.")
		flagSubwords = fs.Bool("subwords", false, "Split words of 7 or more letters at their midpoint.")
		flagCols     = fs.Int("cols", 44, "Width of the position canvas.")
		flagRows     = fs.Int("rows", 16, "Height of the position canvas.")
	)
	fs.Usage = func() {
		w := fs.Output()
		fmt.Fprintf(w, "Usage: neuroweave [flags] <command> [command flags] <text>\n\nCommands:\n")
		for _, c := range commands {
			fmt.Fprintf(w, "  %-10s %s\n", c.name, c.help)
		}
		fmt.Fprintf(w, "\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	a := &app{out: out, cfg: config.Default(), seed: *flagSeed, styles: render.DefaultStyles(), cols: *flagCols, rows: *flagRows}
	if *flagConfig != "" {
		var err error
		if a.cfg, err = config.Load(*flagConfig); err != nil {
			return err
		}
	}
	if *flagSubwords {
		a.cfg.Subwords = true
	}
	if a.seed == 0 {
		a.seed = rand.Uint64()
		fmt.Fprintf(out, "seed: %d\n", a.seed)
	}
	base, err := a.cfg.Tokenizer()
	if err != nil {
		return err
	}
	if a.tok, err = wordsplit.NewCached(base, wordsplit.DefaultCacheSize); err != nil {
		return err
	}

	name := fs.Arg(0)
	for _, c := range commands {
		if c.name == name {
			klog.V(1).Infof("running %q with seed %d", name, a.seed)
			return c.run(ctx, a, fs.Args()[1:])
		}
	}
	fs.Usage()
	return errors.Errorf("unknown command %q", name)
}

// text joins the remaining arguments of a command into its input text. Blank text is accepted
// and yields no tokens.
func text(fs *flag.FlagSet) (string, error) {
	if fs.NArg() == 0 {
		return "", errors.Errorf("%s: missing text", fs.Name())
	}
	return strings.Join(fs.Args(), " "), nil
}
