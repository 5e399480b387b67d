package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"hangout/config"
	"hangout/room"
	"hangout/server"
	"hangout/store"
)

// Hangout 入口：加载配置与房间数据，启动 HTTP + WebSocket 服务和持久化写回
func main() {
	var (
		cfgPath      string
		hashPassword string
	)
	flag.StringVar(&cfgPath, "config", "", "path to config file (yaml), optional")
	flag.StringVar(&hashPassword, "hash-password", "", "print a bcrypt hash for a room password and exit")
	flag.Parse()

	if hashPassword != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(hashPassword), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(h))
		return
	}

	if err := run(cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	log, err := server.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	catalog, err := store.LoadCatalog(cfg.Rooms.CatalogFile)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	defs, source, err := store.LoadRooms(cfg.Rooms.SavedFile, cfg.Rooms.DefaultFile)
	if err != nil {
		return fmt.Errorf("loading rooms: %w", err)
	}
	log.Infow("rooms loaded", "source", source, "rooms", len(defs), "catalog", len(catalog))

	saver := store.NewSaver(cfg.Rooms.SavedFile, cfg.Persistence.FlushInterval, defs, log)
	metrics := server.NewMetrics()
	hub := server.NewHub(log, metrics)

	registry, err := room.NewRegistry(defs, room.Options{
		Width:             cfg.Rooms.Width,
		Height:            cfg.Rooms.Height,
		GridDivision:      cfg.Rooms.GridDivision,
		SpawnAttempts:     cfg.Rooms.SpawnAttempts,
		TrustClientOrigin: cfg.Rooms.TrustClientOrigin,
		Sink:              room.Fanout(hub, saver),
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("building rooms: %w", err)
	}
	hub.Attach(registry)

	srv := server.New(server.Deps{
		Config:   cfg,
		Registry: registry,
		Hub:      hub,
		Catalog:  catalog,
		Saver:    saver,
		Metrics:  metrics,
		Logger:   log,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Hangout listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return saver.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
