package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultNamespace prefixes every list the queue touches.
	DefaultNamespace = "debate:jobs"
	// MaxRetries is the number of attempts before a job is parked in the dead list.
	MaxRetries = 3
	// RetryBackoff is how long the worker pauses after a failed job.
	RetryBackoff = 10 * time.Second
	// dequeueTimeout bounds one BLPOP so the worker loop notices cancellation.
	dequeueTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

// JobTypeEmbeddingUpsert stores a finished debate's transcript for retrieval.
const JobTypeEmbeddingUpsert JobType = "embedding_upsert"

// ArgumentRecord is one transcript turn carried by an embedding job.
type ArgumentRecord struct {
	Turn    int    `json:"turn"`
	Role    string `json:"role"`
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// EmbeddingUpsertPayload is the payload of an embedding job.
type EmbeddingUpsertPayload struct {
	SessionID string           `json:"session_id"`
	Arguments []ArgumentRecord `json:"arguments"`
}

// Job is the envelope stored in Redis.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v interface{}) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s has no payload", j.ID)
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// ListClient is the subset of *redis.Client the queue uses.
type ListClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// Queue is a Redis list job queue with a dead list for exhausted jobs.
type Queue struct {
	client  ListClient
	pending string
	dead    string
	logger  *zap.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithNamespace changes the key prefix, e.g. to share one Redis between deployments.
func WithNamespace(ns string) Option {
	return func(q *Queue) {
		q.pending = ns + ":embeddings"
		q.dead = ns + ":dead"
	}
}

// NewQueue creates a Redis-backed job queue.
func NewQueue(client ListClient, logger *zap.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{client: client, logger: logger}
	WithNamespace(DefaultNamespace)(q)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PendingKey is the list jobs wait in.
func (q *Queue) PendingKey() string { return q.pending }

// DeadKey is the list jobs land in after MaxRetries failures.
func (q *Queue) DeadKey() string { return q.dead }

// Enqueue wraps payload in a new job and appends it to the pending list.
func (q *Queue) Enqueue(ctx context.Context, typ JobType, sessionID string, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.NewString(),
		Type:      typ,
		SessionID: sessionID,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.push(ctx, q.pending, job); err != nil {
		return nil, err
	}
	q.logger.Debug("job enqueued", zap.String("job_id", job.ID), zap.String("type", string(typ)), zap.String("session_id", sessionID))
	return job, nil
}

// EnqueueEmbeddingUpsert queues the transcript of a judged session.
func (q *Queue) EnqueueEmbeddingUpsert(ctx context.Context, payload EmbeddingUpsertPayload) error {
	_, err := q.Enqueue(ctx, JobTypeEmbeddingUpsert, payload.SessionID, payload)
	return err
}

// Dequeue waits up to a few seconds for a job. It returns a nil job when none
// arrived or the entry could not be decoded.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, dequeueTimeout, q.pending).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("blpop %s: %w", q.pending, err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("dropping undecodable job", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry records cause on the job and puts it back, or parks it in the dead
// list once it has failed MaxRetries times.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) error {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	log := q.logger.With(zap.String("job_id", job.ID), zap.String("session_id", job.SessionID), zap.Int("attempt", job.Attempt))
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, q.dead, job); err != nil {
			log.Error("dead list push failed", zap.Error(err))
			return err
		}
		log.Warn("job parked in dead list", zap.String("last_error", job.LastError))
		return nil
	}
	if err := q.push(ctx, q.pending, job); err != nil {
		return err
	}
	log.Info("job requeued")
	return nil
}

// Depth reports how many jobs are pending and dead.
func (q *Queue) Depth(ctx context.Context) (pending, dead int64, err error) {
	if pending, err = q.client.LLen(ctx, q.pending).Result(); err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", q.pending, err)
	}
	if dead, err = q.client.LLen(ctx, q.dead).Result(); err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", q.dead, err)
	}
	return pending, dead, nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}
