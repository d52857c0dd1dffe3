package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"scraptrade-reports/internal/config"
	"scraptrade-reports/internal/events"
	"scraptrade-reports/internal/logging"
	"scraptrade-reports/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	store, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer store.Close()

	blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
	if err != nil {
		logger.Fatal("connect minio", zap.Error(err))
	}

	source := events.NewMinioObjectEventSource(blob.Client(), blob.Bucket())
	sync := events.NewCatalogSync(blob, store, logger.Named("catalog-sync"), cfg.CatalogSyncDelay)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("event-handler listening for object-created events", zap.String("bucket", cfg.MinioBucket))
	err = source.Run(ctx, func(parent context.Context, event events.ObjectCreated) error {
		if err := sync.Handle(parent, event); err != nil {
			logger.Warn("catalog sync failed", zap.String("object_key", event.ObjectKey), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		logger.Fatal("event-handler stopped with error", zap.Error(err))
	}
}
