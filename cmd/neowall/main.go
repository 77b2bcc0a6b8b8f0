package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/1ay1/neowall-sub002/internal/api"
	"github.com/1ay1/neowall-sub002/internal/compositor"
	"github.com/1ay1/neowall-sub002/internal/compositor/layershell"
	"github.com/1ay1/neowall-sub002/internal/compositor/x11root"
	"github.com/1ay1/neowall-sub002/internal/compositor/xdgwindow"
	"github.com/1ay1/neowall-sub002/internal/config"
	"github.com/1ay1/neowall-sub002/internal/engine"
	"github.com/1ay1/neowall-sub002/internal/reload"
	"github.com/1ay1/neowall-sub002/internal/store"
)

const watchInterval = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("neowall: starting",
		"listen_addr", cfg.ListenAddr,
		"state_path", cfg.StatePath,
		"config", cfg.Source,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := compositor.Detect(ctx, layershell.NewProber())
	logger.Info("session detected",
		"family", env.Family,
		"session_type", env.SessionType,
	)

	reg := compositor.NewRegistry()
	for _, d := range []compositor.Descriptor{
		layershell.Descriptor(),
		xdgwindow.Descriptor(),
		x11root.Descriptor(),
	} {
		if err := reg.Register(d); err != nil {
			log.Fatalf("register backend %s: %v", d.Name, err)
		}
	}

	active, err := compositor.Select(ctx, reg, env, logger)
	if err != nil {
		if errors.Is(err, compositor.ErrNoBackend) {
			log.Fatal("no usable compositor backend; is a Wayland or X11 session running?")
		}
		log.Fatalf("backend selection: %v", err)
	}
	defer active.Instance.Close()

	db, err := store.NewSQLiteStore(cfg.StatePath)
	if err != nil {
		log.Fatalf("failed to open state database: %v", err)
	}
	defer db.Close()

	// The coordinator wakes the loop on reload requests; the engine does not
	// exist yet, so the wake is bound late through the closure.
	var eng *engine.Engine
	coord := reload.NewCoordinator(configPath(cfg), func() {
		if eng != nil {
			eng.Wake()
		}
	}, logger)
	eng = engine.New(cfg, active.Instance, db, coord, logger)

	go coord.Watch(ctx, watchInterval)

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- eng.Run(ctx)
		cancel()
	}()

	srv := api.NewServer(cfg.ListenAddr, db, eng, coord, logger)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	cancel()
	if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("event loop: %v", err)
	}
}

func configPath(cfg config.Config) string {
	if cfg.Source != "" {
		return cfg.Source
	}
	return config.Path()
}
