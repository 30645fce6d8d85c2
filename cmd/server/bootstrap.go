package main

import (
	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/handlers"
	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/internal/services"
	"github.com/postul/feedback-pipeline/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg       *config.Config
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *services.Scheduler

	feedbackHandler *handlers.FeedbackHandler
	labelHandler    *handlers.LabelHandler
	rewardHandler   *handlers.RewardHandler
	exportHandler   *handlers.ExportHandler
	eventHandler    *handlers.EventHandler
	statsHandler    *handlers.StatsHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db := models.GetDB()

	// Initialize system logger (DB-backed audit log)
	services.InitSystemLogger(db)

	// Initialize task queue (uses Redis if enabled, otherwise sync mode)
	taskQueue := services.InitTaskQueue(cfg)

	rewardService := services.NewRewardService(db, cfg, taskQueue)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetRecomputeProcessor(rewardService.RecomputeEvent)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetRecomputeProcessor(rewardService.RecomputeEvent)
			worker.Start()
		}
	}

	// Periodic recompute sweep, log cleanup, daily stats snapshot
	scheduler := services.NewScheduler(db, cfg, rewardService)
	scheduler.Start()

	ingestService := services.NewIngestService(db, cfg, taskQueue)
	exportService := services.NewExportService(db, cfg)

	return &appServices{
		cfg:             cfg,
		taskQueue:       taskQueue,
		worker:          worker,
		scheduler:       scheduler,
		feedbackHandler: handlers.NewFeedbackHandler(ingestService),
		labelHandler:    handlers.NewLabelHandler(db, taskQueue),
		rewardHandler:   handlers.NewRewardHandler(rewardService),
		exportHandler:   handlers.NewExportHandler(exportService),
		eventHandler:    handlers.NewEventHandler(db),
		statsHandler:    handlers.NewStatsHandler(db),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
