// cmd/worker launches one fleet of the Worker Runtime (spec §4.E). The
// fleet determines which queue it consumes and which handlers it
// registers; running every action in one process would defeat the
// point of routing image/video/security/AI work to separate queues
// with separate resource profiles.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fileforge/internal/broker"
	"fileforge/internal/config"
	"fileforge/internal/database"
	"fileforge/internal/logger"
	"fileforge/internal/models"
	"fileforge/internal/observability"
	"fileforge/internal/storage"
	"fileforge/internal/worker"
)

func main() {
	fleet := flag.String("fleet", envDefault("WORKER_FLEET", "image"), "worker fleet: image, video, security, or ai")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger.Init(cfg.ServiceName+"-worker-"+*fleet, cfg.Env, logger.ParseLevelFromEnv())

	shutdownOTel, err := observability.InitOTel(context.Background(), cfg.ServiceName+"-worker-"+*fleet)
	if err != nil {
		slog.Warn("failed to initialize OpenTelemetry", "error", err)
	} else {
		defer shutdownOTel(context.Background())
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatal("Failed to configure object store:", err)
	}

	b := broker.New(cfg)
	dialCtx, cancelDial := context.WithTimeout(context.Background(), 30*time.Second)
	err = b.Dial(dialCtx)
	cancelDial()
	if err != nil {
		log.Fatal("Failed to connect to broker:", err)
	}
	defer b.Close()

	if err := os.MkdirAll(cfg.WorkerTempDir, 0o755); err != nil {
		log.Fatal("Failed to prepare worker temp dir:", err)
	}

	rt := worker.New(db, store, b, cfg.WorkerTempDir)

	queue, err := registerFleet(rt, *fleet, cfg)
	if err != nil {
		log.Fatal(err)
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("worker: shutting down", "fleet", *fleet)
		cancelRun()
	}()

	slog.Info("worker: consuming", "fleet", *fleet, "queue", queue)
	if err := rt.Run(runCtx, queue); err != nil && runCtx.Err() == nil {
		log.Fatal("worker: consume loop exited:", err)
	}
	slog.Info("worker: exited", "fleet", *fleet)
}

// registerFleet binds the handlers for one fleet and returns the queue
// it should consume, grounded on the routing table of spec §4.D.
func registerFleet(rt *worker.Runtime, fleet string, cfg *config.Config) (string, error) {
	switch fleet {
	case "image":
		rt.RegisterHandler(models.ActionThumbnail, worker.HandleThumbnail)
		rt.RegisterHandler(models.ActionImageConvert, worker.HandleImageConvert)
		rt.RegisterHandler(models.ActionImageCompress, worker.HandleImageCompress)
		rt.RegisterHandler(models.ActionMetadata, worker.HandleMetadata)
		return models.QueueImage, nil
	case "video":
		rt.RegisterHandler(models.ActionVideoThumbnail, worker.HandleVideoThumbnail)
		rt.RegisterHandler(models.ActionVideoPreview, worker.HandleVideoPreview)
		rt.RegisterHandler(models.ActionVideoConvert, worker.HandleVideoConvert)
		return models.QueueVideo, nil
	case "security":
		rt.RegisterHandler(models.ActionCompress, worker.HandleCompress)
		rt.RegisterHandler(models.ActionEncrypt, worker.EncryptHandlerFor(cfg))
		rt.RegisterHandler(models.ActionDecrypt, worker.DecryptHandlerFor(cfg))
		rt.RegisterHandler(models.ActionVirusScan, worker.VirusScanHandlerFor(cfg))
		return models.QueueSecurity, nil
	case "ai":
		rt.RegisterHandler(models.ActionAITag, worker.AITagHandlerFor(cfg))
		return models.QueueAI, nil
	default:
		return "", errUnknownFleet(fleet)
	}
}

type errUnknownFleet string

func (e errUnknownFleet) Error() string {
	return "worker: unknown fleet " + string(e) + " (want image, video, security, or ai)"
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
