package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"collabedge/internal/api"
	"collabedge/internal/config"
	"collabedge/internal/gateway"
	"collabedge/internal/localstore"
	"collabedge/internal/session"
	"collabedge/internal/transport"
	"collabedge/internal/worker"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if cfg.Environment == "production" {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Local store: file-backed, with an in-memory fallback when the
	// directory is unusable.
	var store localstore.Store
	fileStore, err := localstore.NewFile(cfg.StorePath, log)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.StorePath).Msg("file store unavailable, using in-memory store")
		store = localstore.NewMemory()
	} else {
		store = fileStore
	}

	pool := worker.NewPool(4, log)

	// Transports: the backend websocket plus, when configured, the
	// same-device redis bus.
	transports := []transport.Transport{
		transport.NewWebSocket(cfg.WebSocketURL, log),
	}
	if cfg.RedisAddress != "" {
		if bus := transport.NewRedis(cfg.RedisAddress, log); bus != nil {
			transports = append(transports, bus)
		}
	}

	manager := session.NewManager(session.ManagerOptions{
		Backend:      api.NewClient(cfg.BackendBaseURL, cfg.RequestTimeout),
		Store:        store,
		Pool:         pool,
		Transports:   transports,
		Logger:       log,
		Debounce:     cfg.DebounceInterval,
		MaxDocuments: cfg.MaxDocuments,
		Username:     cfg.Username,
	})

	// Cross-process change notifications from the file store.
	if fileStore != nil {
		watcher, err := localstore.NewWatcher(fileStore, log)
		if err != nil {
			log.Warn().Err(err).Msg("store watcher unavailable, cross-process sync disabled")
		} else {
			defer watcher.Close()
			manager.WatchStore(watcher)
		}
	}

	handler := gateway.NewHandler(manager, store)
	router := gateway.NewRouter(cfg, handler, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.GatewayPort),
		Handler: router.Handler(),
	}

	// Start gateway
	go func() {
		log.Info().Str("port", cfg.GatewayPort).Msg("gateway listening")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("gateway failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("gateway shutdown error")
	}

	manager.Close()
	pool.Shutdown()
	log.Info().Msg("shutdown complete")
}
