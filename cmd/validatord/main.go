package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/export"
	"github.com/omerfdemir/docvalidator/internal/extract"
	"github.com/omerfdemir/docvalidator/internal/job"
	"github.com/omerfdemir/docvalidator/internal/llm/anthropic"
	"github.com/omerfdemir/docvalidator/internal/match"
	"github.com/omerfdemir/docvalidator/internal/repository"
	"github.com/omerfdemir/docvalidator/internal/resilience"
	"github.com/omerfdemir/docvalidator/internal/server"
	"github.com/omerfdemir/docvalidator/internal/sigdetect"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when DB_URL is set, in-memory otherwise.
	var (
		jobs      repository.JobRepository
		templates repository.TemplateRepository
	)
	if cfg.Database.DSN != "" {
		pool, err := repository.Open(ctx, repository.Config{
			DSN:             cfg.Database.DSN,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			log.Fatalf("creating DB pool: %v", err)
		}
		defer repository.Close(pool, logger)

		if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout); err != nil {
			log.Fatalf("DB health failed: %v", err)
		}
		log.Infow("DB health OK")

		jobs = repository.NewPostgresJobStore(pool, logger)
		templates = repository.NewPostgresTemplateStore(pool)
	} else {
		log.Infow("no DB_URL set, using in-memory stores")
		jobs = repository.NewMemoryJobStore()
		templates = repository.NewMemoryTemplateStore()
	}
	if err := repository.SeedTemplates(ctx, templates); err != nil {
		log.Fatalf("seeding templates: %v", err)
	}

	// Pipeline.
	engine := extract.NewExtractor(extract.Config{
		Pdftotext:        cfg.Extract.Pdftotext,
		Pdftoppm:         cfg.Extract.Pdftoppm,
		Tesseract:        cfg.Extract.Tesseract,
		TesseractLang:    cfg.Extract.TesseractLang,
		TessdataDir:      cfg.Extract.TessdataDir,
		DPI:              cfg.Extract.DPI,
		MaxPages:         cfg.Extract.MaxPages,
		ArtifactCacheDir: cfg.Extract.ArtifactCacheDir,
	}, logger)

	analyzer := anthropic.NewAnalyzer(anthropic.Config{
		APIKey:      cfg.Anthropic.APIKey,
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
	}, logger)

	matcher := match.NewMatcher(analyzer, logger)
	detector := sigdetect.NewDetector(logger)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Pipeline.AnalysisMaxAttempts
	retry.InitialBackoff = cfg.Pipeline.AnalysisBackoff

	orch := job.NewOrchestrator(jobs, templates, engine, matcher, detector, job.OrchestratorConfig{
		Retry:          retry,
		ExtractTimeout: cfg.Extract.CallTimeout,
	}, logger)

	queue := job.NewQueue(orch, logger,
		job.WithWorkers(cfg.Pipeline.Workers),
		job.WithQueueSize(cfg.Pipeline.QueueSize),
		job.WithJobTimeout(cfg.Pipeline.JobTimeout),
	)

	// HTTP boundary.
	poll := server.NewPollService(jobs, templates, queue, logger)
	api := server.NewHTTPServer(poll, templates, export.NewService(logger), logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("HTTP serving on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
	queue.Shutdown(shutdownCtx)
	log.Info("bye")
}
