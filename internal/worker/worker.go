package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/internal/retrieval"
	"github.com/letsee/debate-backend/pkg/queue"
)

// JobQueue is the part of the Redis queue the worker drains.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) error
}

// Upserter writes transcript embeddings.
type Upserter interface {
	Upsert(ctx context.Context, sessionID string, args []models.Argument) error
}

// EmbeddingProcessor processes embedding upsert jobs into the retrieval store.
type EmbeddingProcessor struct {
	store   Upserter
	queue   JobQueue
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmbeddingProcessor creates an embedding job processor.
func NewEmbeddingProcessor(store Upserter, q JobQueue, logger *zap.Logger) *EmbeddingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingProcessor{store: store, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one embedding job.
func (p *EmbeddingProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmbeddingUpsert {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmbeddingUpsertPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	if payload.SessionID == "" {
		return fmt.Errorf("embedding job %s has no session id", job.ID)
	}

	args := retrieval.FromPayload(payload)
	if err := p.store.Upsert(ctx, payload.SessionID, args); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	p.logger.Info("embeddings stored", zap.String("session_id", payload.SessionID), zap.Int("arguments", len(args)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmbeddingProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("embedding worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("session_id", job.SessionID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job, err); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmbeddingProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
