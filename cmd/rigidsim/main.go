// Command rigidsim loads a YAML scene, steps it and prints one line per body
// per step. With -watch it runs the scene again whenever the file changes.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/physkit/rigid2d/dynamics"
	"github.com/physkit/rigid2d/scene"
)

type config struct {
	scenePath string
	steps     int
	watch     bool
	verbose   bool
}

func parseFlags() *config {
	cfg := &config{}
	flag.StringVar(&cfg.scenePath, "scene", "", "YAML scene file to run (required)")
	flag.IntVar(&cfg.steps, "steps", -1, "number of steps, overrides the scene (-1 = use the scene)")
	flag.BoolVar(&cfg.watch, "watch", false, "run the scene again whenever the file changes")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging on stderr")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -scene FILE [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -scene stack.yaml -steps 300\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -scene stack.yaml -watch -v\n", os.Args[0])
	}
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.scenePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	dynamics.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "rigidsim: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config, stdout io.Writer) error {
	if err := runOnce(ctx, cfg, stdout); err != nil {
		return err
	}
	if !cfg.watch {
		return nil
	}

	w, err := scene.NewWatcher(cfg.scenePath)
	if err != nil {
		return err
	}
	defer w.Close()

	log := dynamics.Logger()
	log.Info("watching scene", "path", cfg.scenePath)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-w.Events:
			if !ok {
				return nil
			}
			log.Info("scene changed, running again", "path", cfg.scenePath)
			// A broken edit is reported and the next save is awaited.
			if err := runOnce(ctx, cfg, stdout); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				log.Error("scene run failed", "err", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "err", err)
		}
	}
}

func runOnce(ctx context.Context, cfg *config, stdout io.Writer) error {
	s, err := scene.Load(cfg.scenePath)
	if err != nil {
		return err
	}
	sim, err := s.Build()
	if err != nil {
		return err
	}

	out := bufio.NewWriter(stdout)
	if err := sim.Trace(ctx, out, cfg.steps); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}

	p := sim.World.Profile()
	dynamics.Logger().Debug("run finished",
		"bodies", sim.World.BodyCount(),
		"contacts", sim.World.ContactCount(),
		"last_step_ms", p.Step)
	return nil
}
