package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/models"
)

// Store is the retrieval collaborator used by the judge and the worker.
type Store interface {
	Upsert(ctx context.Context, sessionID string, args []models.Argument) error
	Search(ctx context.Context, text string, limit int) ([]models.Material, error)
}

// PostgresStore keeps embeddings in the argument_embeddings table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a store on a migrated pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

const upsertSQL = `INSERT INTO argument_embeddings (session_id, turn, role, speaker, content, embedding)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_id, turn) DO UPDATE
SET role = EXCLUDED.role, speaker = EXCLUDED.speaker, content = EXCLUDED.content, embedding = EXCLUDED.embedding`

const searchSQL = `SELECT e.session_id, e.turn, e.role, e.speaker, e.content,
       (SELECT COALESCE(SUM(a * b), 0) FROM unnest(e.embedding, $1::float8[]) AS t(a, b)) AS similarity
FROM argument_embeddings e
ORDER BY similarity DESC, e.created_at DESC
LIMIT $2`

// Upsert writes every argument of a session in one batch.
func (s *PostgresStore) Upsert(ctx context.Context, sessionID string, args []models.Argument) error {
	if len(args) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range args {
		batch.Queue(upsertSQL, sessionID, a.TurnIndex, a.SpeakerRole.String(), a.SpeakerName, a.Content, Embed(a.Content))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range args {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert embeddings: %w", err)
		}
	}
	s.logger.Debug("embeddings upserted", zap.String("session_id", sessionID), zap.Int("count", len(args)))
	return nil
}

// Search returns up to limit arguments most similar to text.
func (s *PostgresStore) Search(ctx context.Context, text string, limit int) ([]models.Material, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, searchSQL, Embed(text), limit)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	var out []models.Material
	for rows.Next() {
		var m models.Material
		var role string
		if err := rows.Scan(&m.SessionID, &m.Turn, &role, &m.Speaker, &m.Content, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if r, err := models.ParseRole(role); err == nil {
			m.Role = r
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type memoryEntry struct {
	material  models.Material
	embedding []float64
	seq       int
}

// MemoryStore is an in-process Store used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	seq     int
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (m *MemoryStore) Upsert(_ context.Context, sessionID string, args []models.Argument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range args {
		m.seq++
		m.entries[fmt.Sprintf("%s/%d", sessionID, a.TurnIndex)] = &memoryEntry{
			material: models.Material{
				SessionID: sessionID,
				Turn:      a.TurnIndex,
				Role:      a.SpeakerRole,
				Speaker:   a.SpeakerName,
				Content:   a.Content,
			},
			embedding: Embed(a.Content),
			seq:       m.seq,
		}
	}
	return nil
}

func (m *MemoryStore) Search(_ context.Context, text string, limit int) ([]models.Material, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := Embed(text)
	m.mu.RLock()
	ranked := make([]*memoryEntry, 0, len(m.entries))
	scores := make(map[*memoryEntry]float64, len(m.entries))
	for _, e := range m.entries {
		ranked = append(ranked, e)
		scores[e] = Cosine(query, e.embedding)
	}
	m.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return ranked[i].seq > ranked[j].seq
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]models.Material, 0, len(ranked))
	for _, e := range ranked {
		mat := e.material
		mat.Similarity = scores[e]
		out = append(out, mat)
	}
	return out, nil
}

// Len reports how many arguments are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
