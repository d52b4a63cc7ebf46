package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"fileforge/internal/broker"
	"fileforge/internal/config"
	"fileforge/internal/database"
	"fileforge/internal/jobs"
	"fileforge/internal/logger"
	"fileforge/internal/observability"
	"fileforge/internal/router"
	"fileforge/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger.Init(cfg.ServiceName, cfg.Env, logger.ParseLevelFromEnv())

	shutdownOTel, err := observability.InitOTel(context.Background(), cfg.ServiceName)
	if err != nil {
		slog.Warn("failed to initialize OpenTelemetry", "error", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				slog.Error("error shutting down OpenTelemetry", "error", err)
			}
		}()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()
	slog.Info("connected to PostgreSQL")

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatal("Failed to configure object store:", err)
	}
	ctx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureBuckets(ctx); err != nil {
		log.Fatal("Failed to provision object store buckets:", err)
	}
	cancelInit()

	b := broker.New(cfg)
	dialCtx, cancelDial := context.WithTimeout(context.Background(), 30*time.Second)
	if err := b.Dial(dialCtx); err != nil {
		log.Fatal("Failed to connect to broker:", err)
	}
	cancelDial()
	defer b.Close()
	slog.Info("connected to broker")

	submitter := jobs.NewSubmitter(db, store, b)

	r := router.Setup(cfg, db, store, submitter)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	slog.Info("server exited")
}
