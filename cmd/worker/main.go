package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"scraptrade-reports/internal/config"
	"scraptrade-reports/internal/logging"
	"scraptrade-reports/internal/report"
	"scraptrade-reports/internal/storage"
	appTemporal "scraptrade-reports/internal/temporal"
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

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    logging.NewTemporalLogger(logger),
	})
	if err != nil {
		logger.Fatal("connect temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	activities := &appTemporal.Activities{
		Store:     store,
		Blob:      blob,
		Resolver:  report.NewResolver(store, blob, logger.Named("resolver"), cfg.DocumentFetchTimeout),
		Assembler: report.NewAssembler(nil),
		Logger:    logger.Named("activities"),
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.ConsolidatedReportWorkflow, workflow.RegisterOptions{Name: appTemporal.ConsolidatedReportWorkflowName})
	w.RegisterActivity(activities.GenerateReportActivity)
	w.RegisterActivity(activities.RecordReportActivity)
	w.RegisterActivity(activities.DeleteReportObjectActivity)
	w.RegisterActivity(activities.LinkInvoiceReportActivity)

	logger.Info("worker running", zap.String("task_queue", cfg.TemporalTaskQueue))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}
}
