// @title docfill API
// @version 1.0
// @description Upload Word templates, extract placeholders with a language model and fill them in.
// @BasePath /
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"docfill/internal/config"
	"docfill/internal/extraction"
	_ "docfill/internal/extraction/claude"
	_ "docfill/internal/extraction/gemini"
	_ "docfill/internal/extraction/openai"
	"docfill/internal/handler"
	"docfill/internal/repository/postgres"
	"docfill/internal/router"
	"docfill/internal/service"
	s3storage "docfill/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	docRepo := postgres.NewDocumentRepo(db)

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Initialize extraction
	generator, err := extraction.NewGenerator(&cfg.Extraction)
	if err != nil {
		return fmt.Errorf("failed to initialize extraction: %w", err)
	}
	extractor := extraction.NewClient(generator)

	// Initialize services
	processor := service.NewProcessor(docRepo, extractor, s3Client, cfg.S3.Bucket, cfg.Processing.MaxChunkLength)
	regenerator := service.NewRegenerator(docRepo, s3Client, nil, cfg.S3.Bucket)
	docSvc := service.NewDocumentService(docRepo, s3Client, processor, regenerator, &cfg.S3, &cfg.Processing)
	fillSvc := service.NewFillService(docRepo, docSvc, generator)

	// Initialize handlers
	docH := handler.NewDocumentHandler(docSvc)
	fillH := handler.NewFillHandler(fillSvc)
	healthH := handler.NewHealthHandler(docRepo)

	r := router.Setup(docH, fillH, healthH, cfg.CORS.AllowedOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerDone := make(chan struct{})
	if cfg.Queue.Enabled {
		worker := service.NewProcessQueueWorker(docRepo, processor, service.ProcessQueueConfig{
			PollInterval: time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
			Concurrency:  cfg.Queue.Concurrency,
			BatchSize:    cfg.Processing.BatchSize,
			BatchTimeout: cfg.Processing.BatchTimeout,
		})
		go func() {
			worker.Start(ctx)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-workerDone
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	<-workerDone
	return nil
}
