package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"callscore/internal/analysis_client"
	"callscore/internal/coaching_client"
	"callscore/internal/config"
	"callscore/internal/pipeline"
	"callscore/internal/reconcile"
	"callscore/internal/repository"
	"callscore/internal/server"
	"callscore/internal/statemachine"
	"callscore/internal/storage_client"
	"callscore/internal/taxonomy"
	"callscore/internal/transcribe_client"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Initialize repositories
	checklistRepo := repository.NewChecklistRepository(db, logger)
	sessionRepo := repository.NewSessionRepository(db, logger)
	audioRepo := repository.NewAudioRepository(db, logger)
	transcriptRepo := repository.NewTranscriptRepository(db, logger)
	responseRepo := repository.NewResponseRepository(db, logger)
	scoringRepo := repository.NewScoringRepository(db, logger)
	coachingRepo := repository.NewCoachingRepository(db, logger)
	reportRepo := repository.NewReportRepository(db, logger)

	// Seed the reference checklist on an empty database, then load the
	// in-memory snapshot
	if err := taxonomy.SeedReference(checklistRepo); err != nil {
		logger.Fatal("Failed to seed checklist", zap.Error(err))
	}
	provider, err := taxonomy.NewProvider(checklistRepo)
	if err != nil {
		logger.Fatal("Failed to load checklist", zap.Error(err))
	}
	logger.Info("Checklist loaded",
		zap.Int("items", provider.Current().ItemCount()),
		zap.Float64("max_score", provider.Current().TotalMaxScore()))

	// Initialize external service clients
	storageClient := storage_client.NewClient(cfg.AudioStorage.URL)
	transcribeClient := transcribe_client.NewClient(cfg.Transcription.URL)
	analysisClient := analysis_client.NewClient(cfg.Analysis.URL)

	// Coaching is optional; without it sessions still complete, they just
	// have no feedback artifacts
	var coach pipeline.CoachingGenerator
	if cfg.Coaching.Enabled {
		coach = coaching_client.NewClient(cfg.Coaching.URL)
		logger.Info("Coaching service enabled")
	}

	// Initialize the pipeline
	machine := statemachine.NewMachine(sessionRepo, logger)
	reconciler := reconcile.NewReconciler(logger)
	retryPolicy := pipeline.RetryPolicy{
		MaxRetries: cfg.Pipeline.MaxRetries,
		Backoff:    time.Duration(cfg.Pipeline.BackoffSeconds * float64(time.Second)),
	}
	timeouts := pipeline.Timeouts{
		Storage:       30 * time.Second,
		Transcription: cfg.TranscriptionTimeout(),
		Analysis:      cfg.AnalysisTimeout(),
		Coaching:      cfg.CoachingTimeout(),
	}
	coordinator := pipeline.NewCoordinator(sessionRepo, audioRepo, transcriptRepo, responseRepo,
		scoringRepo, coachingRepo, reportRepo, machine, provider, reconciler,
		storageClient, transcribeClient, analysisClient, coach, retryPolicy, timeouts, logger)

	queue := pipeline.NewQueue(cfg.Pipeline.QueueSize, logger)
	worker := pipeline.NewWorker(queue, coordinator, cfg.Pipeline.Workers, logger)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run pipeline workers in a goroutine
	go worker.Run(ctx)

	// Initialize and run the server
	log := logrus.New()
	srv := server.NewServer(db, log, cfg, logger, provider, machine, coordinator, queue)
	srv.Run(cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}
