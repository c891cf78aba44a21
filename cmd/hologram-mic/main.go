// hologram-mic records utterances with the server's microphone settings to
// tune the voice activity thresholds.
//
//	hologram-mic --loops 3 --save
//	hologram-mic --meter
//	hologram-mic --transcribe
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/teslashibe/go-hologram/internal/config"
	"github.com/teslashibe/go-hologram/internal/log"
	"github.com/teslashibe/go-hologram/pkg/audiofile"
	"github.com/teslashibe/go-hologram/pkg/audioio"
	"github.com/teslashibe/go-hologram/pkg/stt"
	"github.com/teslashibe/go-hologram/pkg/voice"
)

func main() {
	flags := config.NewFlags("hologram-mic")
	fs := flags.FlagSet()
	loops := fs.IntP("loops", "n", 1, "number of utterances to record")
	meter := fs.Bool("meter", false, "print the RMS of every chunk instead of recording")
	save := fs.Bool("save", false, "write recordings to the audio directory")
	transcribe := fs.Bool("transcribe", false, "send recordings to Whisper")

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

	if err := run(ctx, cfg, *loops, *meter, *save, *transcribe); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("hologram-mic failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, loops int, meter, save, transcribe bool) error {
	src, err := audioio.NewSource(cfg.AudioConfig(), log.L())
	if err != nil {
		return err
	}
	if err := src.Open(ctx); err != nil {
		return err
	}
	defer src.Close()

	vc := cfg.VoiceConfig()
	if meter {
		return runMeter(ctx, src, vc)
	}

	var store *audiofile.Store
	if save || transcribe {
		if store, err = audiofile.NewStore(cfg.Audio.Dir, cfg.PublicURL(), log.L()); err != nil {
			return err
		}
	}
	var whisper *stt.Whisper
	if transcribe {
		sc := cfg.WhisperConfig()
		sc.Logger = log.L()
		if whisper, err = stt.NewWhisper(sc); err != nil {
			return err
		}
	}

	limits := vc.Limits()
	log.Info("recording",
		"silence_threshold", limits.SilenceThreshold,
		"min_energy", limits.MinEnergyThreshold,
		"silence_chunks", limits.SilenceChunks,
		"max_wait_chunks", limits.MaxWaitChunks,
	)

	for i := 1; i <= loops; i++ {
		fmt.Printf("[%d/%d] speak now...\n", i, loops)
		start := time.Now()
		rec, err := voice.Record(ctx, src, limits)
		if errors.Is(err, voice.ErrNoSpeech) {
			fmt.Printf("  nothing heard after %s\n", time.Since(start).Round(time.Millisecond))
			continue
		}
		if err != nil {
			return err
		}
		fmt.Printf("  %d chunks, %s of audio, peak RMS %.0f\n", rec.Frames, rec.Duration().Round(time.Millisecond), rec.Peak)

		if store == nil {
			continue
		}
		name, err := store.SaveWAV(rec.Samples, rec.SampleRate, rec.Channels)
		if err != nil {
			return err
		}
		path, _ := store.Path(name)
		if save {
			fmt.Printf("  saved %s\n", path)
		}
		if whisper != nil {
			if err := printTranscript(ctx, whisper, path); err != nil {
				fmt.Printf("  transcription failed: %v\n", err)
			}
		}
		if !save {
			store.Remove(name)
		}
	}
	return nil
}

func printTranscript(ctx context.Context, whisper *stt.Whisper, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	text, err := whisper.Transcribe(ctx, f, filepath.Base(path))
	if err != nil {
		return err
	}
	fmt.Printf("  %q (%s)\n", text, time.Since(start).Round(time.Millisecond))
	return nil
}

// runMeter prints a bar per chunk with the two thresholds marked.
func runMeter(ctx context.Context, src audioio.Source, vc voice.Config) error {
	const width = 60
	scale := vc.MinEnergyThreshold * 4 / width
	for {
		chunk, err := src.Read(ctx)
		if err != nil {
			return err
		}
		rms := audioio.RMS(chunk.Samples)
		n := min(int(rms/scale), width)
		bar := []byte(strings.Repeat("#", n) + strings.Repeat(" ", width-n))
		bar[min(int(vc.SilenceThreshold/scale), width-1)] = '|'
		bar[min(int(vc.MinEnergyThreshold/scale), width-1)] = '!'
		fmt.Printf("\r%6.0f [%s]", rms, bar)
	}
}
