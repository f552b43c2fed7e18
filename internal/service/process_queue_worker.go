package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"docfill/internal/port"
)

// ProcessQueueConfig holds settings for the process queue worker.
type ProcessQueueConfig struct {
	PollInterval time.Duration
	Concurrency  int
	BatchSize    int
	BatchTimeout time.Duration
}

// BatchProcessor advances one document by one batch.
type BatchProcessor interface {
	ProcessNextBatch(ctx context.Context, docID uuid.UUID, batchSize int) (*BatchResult, error)
}

// ProcessQueueWorker polls for documents with unprocessed chunks and runs one batch per claim.
type ProcessQueueWorker struct {
	docRepo   port.DocumentRepository
	processor BatchProcessor
	cfg       ProcessQueueConfig
	wg        sync.WaitGroup
}

// NewProcessQueueWorker creates a new ProcessQueueWorker.
func NewProcessQueueWorker(docRepo port.DocumentRepository, processor BatchProcessor, cfg ProcessQueueConfig) *ProcessQueueWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Minute
	}
	return &ProcessQueueWorker{
		docRepo:   docRepo,
		processor: processor,
		cfg:       cfg,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight batches have finished.
func (w *ProcessQueueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Printf("processQueueWorker: started (poll=%s, concurrency=%d, batch=%d)",
		w.cfg.PollInterval, w.cfg.Concurrency, w.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			log.Printf("processQueueWorker: shutting down, waiting for in-flight batches...")
			w.wg.Wait()
			log.Printf("processQueueWorker: shutdown complete")
			return
		case <-ticker.C:
			w.poll(ctx, sem)
		}
	}
}

func (w *ProcessQueueWorker) poll(ctx context.Context, sem chan struct{}) {
	available := w.cfg.Concurrency - len(sem)
	if available <= 0 {
		return
	}

	ids, err := w.docRepo.ClaimProcessable(ctx, available)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("processQueueWorker: ClaimProcessable error: %v", err)
		}
		return
	}

	for _, id := range ids {
		id := id
		sem <- struct{}{}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-sem }()
			w.runBatch(id)
		}()
	}
}

func (w *ProcessQueueWorker) runBatch(docID uuid.UUID) {
	// A fresh context lets in-flight batches complete during shutdown.
	batchCtx, cancel := context.WithTimeout(context.Background(), w.cfg.BatchTimeout)
	defer cancel()

	res, err := w.processor.ProcessNextBatch(batchCtx, docID, w.cfg.BatchSize)
	switch {
	case err != nil:
		log.Printf("processQueueWorker: document %s: %v", docID, err)
	case res.Status == BatchStatusFailed:
		log.Printf("processQueueWorker: document %s failed: %v", docID, res.Err)
	default:
		log.Printf("processQueueWorker: document %s -> %s", docID, res.Status)
	}

	if err := w.docRepo.ReleaseClaim(batchCtx, docID); err != nil {
		log.Printf("processQueueWorker: releasing %s: %v", docID, err)
	}
}
