package retrieval

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/pkg/queue"
)

// Enqueuer is the part of the job queue the archiver needs.
type Enqueuer interface {
	EnqueueEmbeddingUpsert(ctx context.Context, payload queue.EmbeddingUpsertPayload) error
}

const defaultEnqueueTimeout = 2 * time.Second

// QueueArchiver hands finished transcripts to the worker through Redis.
type QueueArchiver struct {
	queue   Enqueuer
	timeout time.Duration
}

// NewQueueArchiver bounds each enqueue by timeout; timeout <= 0 means 2s.
func NewQueueArchiver(q Enqueuer, timeout time.Duration) *QueueArchiver {
	if timeout <= 0 {
		timeout = defaultEnqueueTimeout
	}
	return &QueueArchiver{queue: q, timeout: timeout}
}

// Archive enqueues an embedding job for the transcript. The enqueue keeps the
// values of ctx but not its cancellation or deadline.
func (a *QueueArchiver) Archive(ctx context.Context, sessionID string, args []models.Argument) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	return a.queue.EnqueueEmbeddingUpsert(ctx, ToPayload(sessionID, args))
}

// InlineArchiver upserts on a background goroutine in this process.
type InlineArchiver struct {
	store   Store
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewInlineArchiver(store Store, timeout time.Duration, logger *zap.Logger) *InlineArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InlineArchiver{store: store, timeout: timeout, logger: logger}
}

// Archive starts the upsert and returns immediately.
func (a *InlineArchiver) Archive(_ context.Context, sessionID string, args []models.Argument) error {
	args = append([]models.Argument(nil), args...)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.store.Upsert(ctx, sessionID, args); err != nil {
			a.logger.Warn("inline embedding upsert failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every started upsert has finished.
func (a *InlineArchiver) Wait() { a.wg.Wait() }

// ToPayload converts a transcript into a queue payload.
func ToPayload(sessionID string, args []models.Argument) queue.EmbeddingUpsertPayload {
	p := queue.EmbeddingUpsertPayload{SessionID: sessionID, Arguments: make([]queue.ArgumentRecord, 0, len(args))}
	for _, a := range args {
		p.Arguments = append(p.Arguments, queue.ArgumentRecord{
			Turn:    a.TurnIndex,
			Role:    a.SpeakerRole.String(),
			Speaker: a.SpeakerName,
			Content: a.Content,
		})
	}
	return p
}

// FromPayload converts a queue payload back into arguments.
func FromPayload(p queue.EmbeddingUpsertPayload) []models.Argument {
	out := make([]models.Argument, 0, len(p.Arguments))
	for _, rec := range p.Arguments {
		role, err := models.ParseRole(rec.Role)
		if err != nil {
			continue
		}
		out = append(out, models.Argument{
			SpeakerRole: role,
			SpeakerName: rec.Speaker,
			Content:     rec.Content,
			TurnIndex:   rec.Turn,
		})
	}
	return out
}
