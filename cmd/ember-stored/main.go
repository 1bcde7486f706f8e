// Command ember-stored runs the object-store daemon: it opens the
// configured backend, reloads persisted state once, and serves the HTTP
// API until shut down, flushing the registry on exit.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emberworks/ember-store/internal/api"
	"github.com/emberworks/ember-store/internal/config"
	"github.com/emberworks/ember-store/internal/engine"
	"github.com/emberworks/ember-store/internal/vault"
)

func main() {
	configPath := flag.String("config", "", "path to ember.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	store, err := openEngine(cfg)
	if err != nil {
		log.Error("failed to open storage engine", "error", err)
		os.Exit(1)
	}

	// Load durable state once; a corrupt backing store means starting
	// empty, never a crash loop.
	if err := store.Reload(); err != nil {
		log.Warn("could not load existing data, starting empty", "error", err)
	}
	log.Info("engine started", "engine", cfg.Engine, "objects", store.Count(""))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := &api.Handler{Store: store}
	h.Register(r.Group("/api"))

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	go func() {
		log.Info("http api listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Info("shutdown signal received, finalizing disk writes")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if err := store.Save(); err != nil {
		log.Error("final save failed", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("engine close failed", "error", err)
	}
	log.Info("persistence complete, exiting")
}

func openEngine(cfg config.Config) (engine.Store, error) {
	switch cfg.Engine {
	case "badger":
		return engine.OpenBadger(cfg.BadgerDir, nil)
	default:
		var key []byte
		if cfg.EncryptionKey != "" {
			var err error
			key, err = vault.ParseKey(cfg.EncryptionKey)
			if err != nil {
				return nil, err
			}
		}
		p, err := engine.NewPersistence(cfg.DataFile, key)
		if err != nil {
			return nil, err
		}
		return engine.NewFileStore(p, nil), nil
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
