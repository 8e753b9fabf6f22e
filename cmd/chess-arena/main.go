package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	appcfg "github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/coordinator"
	"github.com/park285/chess-arena/internal/engine"
	"github.com/park285/chess-arena/internal/httpapi"
	"github.com/park285/chess-arena/internal/identity"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/storage"
	"github.com/park285/chess-arena/internal/transport"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	messages, err := msgcat.New(cfg.MessageOverrideDir)
	if err != nil {
		obslog.L().Fatal("message catalog init error", zap.Error(err))
	}

	snaps, err := storage.NewRedisStore(cfg.RedisURL, cfg.SnapshotTTL)
	if err != nil {
		obslog.L().Fatal("redis init error", zap.Error(err))
	}

	// results archive is optional; skipped entirely when no DATABASE_URL
	var archive coordinator.ResultArchive
	var repo *storage.ResultRepository
	if cfg.DatabaseURL != "" {
		repo, err = storage.NewResultRepository(cfg.DatabaseURL)
		if err != nil {
			obslog.L().Fatal("postgres init error", zap.Error(err))
		}
		archive = repo
	}

	bridge := coordinator.NewBridge(snaps, archive, cfg.BridgeQueueSize, cfg.BridgeMaxAttempts)
	store := coordinator.NewStore(engine.New(), bridge, messages, cfg.SessionGrace)

	var validator identity.TokenValidator
	if cfg.AuthSecret != "" {
		validator = identity.NewHMACValidator(cfg.AuthSecret)
	}
	resolver := identity.NewResolver(validator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.RunSweeper(ctx, cfg.SweepInterval)

	wsSrv := &http.Server{
		Addr:         cfg.WSAddr,
		Handler:      transport.NewServer(store, resolver, messages).Handler(),
		ReadTimeout:  0, // websocket connections are long-lived
		WriteTimeout: 0,
	}
	go func() {
		obslog.L().Info("ws_listen", zap.String("addr", cfg.WSAddr))
		if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("ws server error", zap.Error(err))
		}
	}()

	api := &fasthttp.Server{
		Handler:      httpapi.NewServer(store, resolver).Handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		obslog.L().Info("api_listen", zap.String("addr", cfg.APIAddr))
		if err := api.ListenAndServe(cfg.APIAddr); err != nil {
			obslog.L().Fatal("api server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("shutdown")

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = wsSrv.Shutdown(shutCtx)
	_ = api.ShutdownWithContext(shutCtx)
	bridge.Close()
	_ = snaps.Close()
	_ = repo.Close()
}
