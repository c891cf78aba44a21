// hologram-vision runs the camera loop alone and prints every detection, to
// tune the motion and wave thresholds without a client.
//
//	hologram-vision --strategy both
//	hologram-vision --camera 1 --stats 2s
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/teslashibe/go-hologram/internal/config"
	"github.com/teslashibe/go-hologram/internal/log"
	"github.com/teslashibe/go-hologram/pkg/task"
	"github.com/teslashibe/go-hologram/pkg/vision"
	"github.com/teslashibe/go-hologram/pkg/vision/capture"
)

// printer writes broadcasts to stdout with a timestamp.
type printer struct {
	start time.Time
}

func (p printer) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Printf("%8s %s\n", time.Since(p.start).Round(time.Millisecond), data)
	return nil
}

func main() {
	flags := config.NewFlags("hologram-vision")
	stats := flags.FlagSet().Duration("stats", 0, "print frame counters at this interval (0 disables)")

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

	if err := run(ctx, cfg, *stats); err != nil {
		log.Error("hologram-vision failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, statsEvery time.Duration) error {
	vc := cfg.VisionConfig()
	if err := vc.Validate(); err != nil {
		return err
	}

	var differ vision.Differ
	if vc.Strategy.NeedsDiffer() {
		d := capture.NewDiffer()
		defer d.Close()
		differ = d
	}

	var lm vision.Landmarker
	if vc.Strategy.NeedsLandmarks() {
		hl, err := capture.NewHandLandmarker(cfg.LandmarkConfig())
		if err != nil {
			return err
		}
		defer hl.Close()
		lm = hl
	}
	strategy, err := vision.NewStrategy(vc, differ, lm)
	if err != nil {
		return err
	}

	tasks := task.NewManager(ctx, log.L())
	defer tasks.CancelAll()

	var cam vision.Camera
	if cfg.Vision.Backend == config.CameraMock {
		cam = vision.NewMockCamera(cfg.Vision.Width, cfg.Vision.Height)
	} else {
		cam = capture.NewCamera(cfg.CameraConfig(), log.L())
	}

	comp, err := vision.NewComponent(vc, vision.Deps{
		Tasks:       tasks,
		Camera:      cam,
		Strategy:    strategy,
		Broadcaster: printer{start: time.Now()},
		Logger:      log.L(),
	})
	if err != nil {
		return err
	}
	if err := comp.Start(ctx); err != nil {
		return err
	}
	log.Info("watching", "strategy", strategy.Name(), "device", cfg.Vision.Device)

	var tick <-chan time.Time
	if statsEvery > 0 {
		t := time.NewTicker(statsEvery)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return comp.Stop(context.Background())
		case <-tick:
			printStats(os.Stderr, comp.Stats())
		case <-time.After(100 * time.Millisecond):
			if !comp.Active() {
				return errors.New("camera loop stopped")
			}
		}
	}
}

func printStats(w io.Writer, s vision.Stats) {
	fmt.Fprintf(w, "frames=%d motions=%d waves=%d errors=%d\n", s.Frames, s.Motions, s.Waves, s.Errors)
}
