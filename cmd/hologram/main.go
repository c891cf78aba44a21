// Hologram server: switches between camera gesture detection and a spoken
// conversation loop on request from websocket clients.
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
	"github.com/teslashibe/go-hologram/pkg/hologram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Error("hologram exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, flags, err := config.Load(os.Args[1:], os.LookupEnv)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if flags.PrintOnly {
		return cfg.WriteTOML(os.Stdout)
	}

	log.Init(cfg.LogLevel)

	app, err := hologram.New(cfg, hologram.WithLogger(log.L()))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	runErr := app.Run(ctx)

	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	if err := app.Shutdown(sctx); err != nil {
		log.Warn("shutdown incomplete", "error", err)
	}
	return runErr
}
