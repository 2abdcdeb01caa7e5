package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conebot/conebot-go/internal/cache"
	"github.com/conebot/conebot-go/internal/concurrency"
	"github.com/conebot/conebot-go/internal/config"
	"github.com/conebot/conebot-go/internal/database/mongodb"
	"github.com/conebot/conebot-go/internal/droptable"
	"github.com/conebot/conebot-go/internal/earn"
	"github.com/conebot/conebot-go/internal/engine"
	"github.com/conebot/conebot-go/internal/logger"
	"github.com/conebot/conebot-go/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	client, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	db := client.Database(cfg.MongoDB)
	if err := mongodb.EnsureCollections(ctx, db); err != nil {
		slog.Error("Failed to ensure collections", "error", err)
		os.Exit(1)
	}
	store := mongodb.NewStore(client, cfg.MongoDB, cfg.MongoTransactions)

	entityCache, err := cache.New(cfg.CacheCapacity)
	if err != nil {
		slog.Error("Failed to build entity cache", "error", err)
		os.Exit(1)
	}

	eng := engine.NewService(store, entityCache, concurrency.NewLockManager(), droptable.NewResolver(), engine.Options{
		LockTimeout:   cfg.LockTimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryBackoff:  cfg.RetryBackoff,
	})
	earnSvc := earn.NewService(eng)

	srv := server.NewServer(cfg.Port, store, eng, earnSvc)

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.Start(); err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
