package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habitsync/internal/app"
	"habitsync/internal/auth"
	"habitsync/internal/config"
	"habitsync/internal/logger"
	"habitsync/internal/realtime"
	"habitsync/internal/store"
)

func main() {
	cfg := config.Load()
	if cfg.Debug {
		logger.SetDebug(true)
	}
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		logger.Fatal("migrations failed", "error", err)
	}

	bus, err := realtime.NewRedisBus(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis connection failed", "error", err)
	}
	defer bus.Close()

	sessions, err := auth.NewRedisSessionStore(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis connection failed", "error", err)
	}
	defer sessions.Close()

	documents := store.NewPostgresStore(db, bus)
	authSvc := auth.NewService(documents, sessions, cfg.SessionTTL)
	service := app.NewService(authSvc, documents, documents, sessions)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
