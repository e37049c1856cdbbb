// Package main is the entry point for the soundsysd audio-event daemon.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CWE3D/lister-sound-system/internal/catalog"
	"github.com/CWE3D/lister-sound-system/internal/command"
	"github.com/CWE3D/lister-sound-system/internal/config"
	"github.com/CWE3D/lister-sound-system/internal/mixer"
	"github.com/CWE3D/lister-sound-system/internal/playback"
	"github.com/CWE3D/lister-sound-system/internal/proc"
	"github.com/CWE3D/lister-sound-system/internal/sched"
	"github.com/CWE3D/lister-sound-system/internal/server"
	"github.com/CWE3D/lister-sound-system/internal/stream"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: XDG config dir)")
	listenAddr := flag.String("listen", "", "HTTP API listen address (overrides config)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		println("soundsysd version", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting lister sound system", "version", version)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	registry := proc.NewRegistry(logger.With("component", "proc"))

	cat := catalog.New(cfg.Sound.Directory, cfg.PredefinedSounds(), logger.With("component", "catalog"))
	mix := mixer.New(cfg.Volume, logger.With("component", "mixer"))
	pb := playback.New(cfg.Sound, registry, logger.With("component", "playback"))
	st := stream.New(cfg.Stream, registry, logger.With("component", "stream"))

	scheduler := sched.New(logger.With("component", "sched"))
	scheduler.Start()
	defer scheduler.Stop()

	controller := command.NewController(logger, cat, mix, pb, st, scheduler)
	dispatcher := command.NewDispatcher(logger.With("component", "command"))
	controller.RegisterCommands(dispatcher)

	// Prime the sound cache and watch the directory for changes.
	if _, err := cat.Scan(); err != nil {
		logger.Warn("initial sound scan failed", "error", err)
	}
	watcher, err := catalog.NewWatcher(cat, logger.With("component", "watcher"))
	if err != nil {
		logger.Warn("failed to create sound directory watcher", "error", err)
	} else if err := watcher.Start(); err != nil {
		logger.Warn("failed to start sound directory watcher", "error", err)
	} else {
		defer func() { _ = watcher.Stop() }()
	}

	srv := server.New(controller, dispatcher, logger.With("component", "server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Listen)
	}()

	// Best-effort startup chime, matching the predefined "startup" sound.
	go func() {
		if _, err := dispatcher.Dispatch(context.Background(), "PLAY_SOUND SOUND=startup"); err != nil {
			logger.Debug("startup sound not played", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}

	// Leave no players behind.
	registry.Terminate(proc.RoleSoundPlayer)
	registry.Terminate(proc.RoleStreamPlayer)

	logger.Info("shutdown complete")
	return nil
}
