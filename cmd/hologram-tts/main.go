// hologram-tts measures reply latency: optional generation, profanity
// filtering and synthesis, with the server's providers and persona.
//
//	hologram-tts --text "Merhaba!"
//	hologram-tts --ask "Bugün hava nasıl?" --runs 3
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/teslashibe/go-hologram/internal/config"
	"github.com/teslashibe/go-hologram/internal/log"
	"github.com/teslashibe/go-hologram/pkg/audiofile"
	"github.com/teslashibe/go-hologram/pkg/filter"
	"github.com/teslashibe/go-hologram/pkg/hologram"
	"github.com/teslashibe/go-hologram/pkg/inference"
)

type options struct {
	text string
	ask  string
	runs int
	keep bool
}

func main() {
	flags := config.NewFlags("hologram-tts")
	fs := flags.FlagSet()
	var opts options
	fs.StringVarP(&opts.text, "text", "t", "Merhaba, ben hologram!", "text to synthesize")
	fs.StringVarP(&opts.ask, "ask", "a", "", "generate the reply to this prompt first")
	fs.IntVarP(&opts.runs, "runs", "n", 1, "number of runs")
	fs.BoolVar(&opts.keep, "keep", false, "keep the synthesized files")

	cfg, err := flags.Load(os.Args[1:], os.LookupEnv)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("hologram-tts failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	synth, err := hologram.NewSynthesizer(cfg, log.L())
	if err != nil {
		return err
	}
	defer synth.Close()

	var gen inference.Generator
	if opts.ask != "" {
		g, release, err := hologram.NewGenerator(ctx, cfg, log.L())
		if err != nil {
			return err
		}
		defer release()
		gen = g
	}

	words, err := filter.Load(cfg.Filter.WordsFile, log.L())
	if err != nil {
		return err
	}
	store, err := audiofile.NewStore(cfg.Audio.Dir, cfg.PublicURL(), log.L())
	if err != nil {
		return err
	}

	var total time.Duration
	for i := 1; i <= opts.runs; i++ {
		start := time.Now()
		text := opts.text
		var genTime time.Duration

		if gen != nil {
			reply, err := gen.Generate(ctx, opts.ask)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			genTime = time.Since(start)
			text = reply
		}
		if words.ContainsProfanity(text) {
			text = words.Censor(text)
		}

		t0 := time.Now()
		res, err := synth.Synthesize(ctx, text)
		if err != nil {
			return fmt.Errorf("synthesize: %w", err)
		}
		synthTime := time.Since(t0)

		name, err := store.Save(res.Audio, res.FileExt())
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		total += elapsed

		fmt.Printf("[%d/%d] %q\n", i, opts.runs, text)
		fmt.Printf("  generate %s  synthesize %s  total %s\n",
			genTime.Round(time.Millisecond), synthTime.Round(time.Millisecond), elapsed.Round(time.Millisecond))
		fmt.Printf("  %d bytes, %s of audio, %s\n", len(res.Audio), res.Duration.Round(time.Millisecond), store.URL(name))

		if !opts.keep {
			store.Remove(name)
		}
	}
	if opts.runs > 1 {
		fmt.Printf("average %s\n", (total / time.Duration(opts.runs)).Round(time.Millisecond))
	}
	return nil
}
