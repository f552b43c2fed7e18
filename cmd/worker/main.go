package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"docfill/internal/config"
	"docfill/internal/extraction"
	_ "docfill/internal/extraction/claude"
	_ "docfill/internal/extraction/gemini"
	_ "docfill/internal/extraction/openai"
	"docfill/internal/repository/postgres"
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

	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	generator, err := extraction.NewGenerator(&cfg.Extraction)
	if err != nil {
		return fmt.Errorf("failed to initialize extraction: %w", err)
	}

	docRepo := postgres.NewDocumentRepo(db)
	processor := service.NewProcessor(docRepo, extraction.NewClient(generator), s3Client, cfg.S3.Bucket, cfg.Processing.MaxChunkLength)
	worker := service.NewProcessQueueWorker(docRepo, processor, service.ProcessQueueConfig{
		PollInterval: time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
		Concurrency:  cfg.Queue.Concurrency,
		BatchSize:    cfg.Processing.BatchSize,
		BatchTimeout: cfg.Processing.BatchTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker.Start(ctx)
	return nil
}
