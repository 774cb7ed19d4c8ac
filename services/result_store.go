package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"sentinel-backend/models"
)

var (
	ErrNotFound        = errors.New("moderation result not found")
	ErrAlreadyResolved = errors.New("moderation result already amended by review")
)

// ResultStore persists ModerationResults. Results are written once and may be
// amended exactly once by a human resolution, which appends to history
// instead of overwriting it.
type ResultStore interface {
	Save(ctx context.Context, result *models.ModerationResult) error
	Get(ctx context.Context, id string) (*models.ModerationResult, error)
	Amend(ctx context.Context, id string, status models.ModerationStatus, res models.Resolution) (*models.ModerationResult, error)
}

// PGResultStore keeps the full result as JSON next to indexed columns, the
// same way the upstream reporting tables are laid out.
type PGResultStore struct {
	pool *pgxpool.Pool
}

func NewPGResultStore(pool *pgxpool.Pool) *PGResultStore {
	return &PGResultStore{pool: pool}
}

func (s *PGResultStore) Save(ctx context.Context, result *models.ModerationResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO moderation_results (id, content_id, status, human_review, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		result.ID, result.ContentID, string(result.Status), result.HumanReviewRequired, body, result.CreatedAt)
	return err
}

func (s *PGResultStore) Get(ctx context.Context, id string) (*models.ModerationResult, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, "SELECT body FROM moderation_results WHERE id = $1", id).Scan(&body)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var result models.ModerationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *PGResultStore) Amend(ctx context.Context, id string, status models.ModerationStatus, res models.Resolution) (*models.ModerationResult, error) {
	result, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.Resolution != nil {
		return nil, ErrAlreadyResolved
	}
	if res.DecidedAt.IsZero() {
		res.DecidedAt = time.Now().UTC()
	}
	result.Status = status
	result.HumanReviewRequired = false
	result.Resolution = &res
	body, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE moderation_results SET status = $1, human_review = false, body = $2
		 WHERE id = $3 AND (body->'resolution') IS NULL`,
		string(status), body, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyResolved
	}
	return result, nil
}

// MemoryResultStore backs tests and single-node development.
type MemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]*models.ModerationResult
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[string]*models.ModerationResult)}
}

func (s *MemoryResultStore) Save(_ context.Context, result *models.ModerationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *result
	s.results[result.ID] = &clone
	return nil
}

func (s *MemoryResultStore) Get(_ context.Context, id string) (*models.ModerationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *result
	return &clone, nil
}

func (s *MemoryResultStore) Amend(_ context.Context, id string, status models.ModerationStatus, res models.Resolution) (*models.ModerationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	if result.Resolution != nil {
		return nil, ErrAlreadyResolved
	}
	if res.DecidedAt.IsZero() {
		res.DecidedAt = time.Now().UTC()
	}
	result.Status = status
	result.HumanReviewRequired = false
	result.Resolution = &res
	clone := *result
	return &clone, nil
}
