package services

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sentinel-backend/models"
)

const hashCacheTTL = 24 * time.Hour

// ViolationDB is the shared, durable fingerprint store: Postgres holds the
// truth, Redis sits in front so the fast path stays in the low tens of
// milliseconds. Redis is optional; without it every lookup hits Postgres.
type ViolationDB struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  *zap.SugaredLogger
}

func NewViolationDB(pool *pgxpool.Pool, rdb *redis.Client, log *zap.SugaredLogger) *ViolationDB {
	return &ViolationDB{pool: pool, rdb: rdb, log: log}
}

func hashKey(fingerprint string) string {
	return "sentinel:hash:" + fingerprint
}

func (db *ViolationDB) Lookup(ctx context.Context, fingerprint string) (models.ViolationType, bool, error) {
	if db.rdb != nil {
		val, err := db.rdb.Get(ctx, hashKey(fingerprint)).Result()
		if err == nil {
			return models.ViolationType(val), true, nil
		}
		if err != redis.Nil {
			db.log.Warnw("[ViolationDB] redis lookup failed, falling back to postgres", "error", err)
		}
	}

	var vtype string
	err := db.pool.QueryRow(ctx,
		"SELECT violation_type FROM violation_hashes WHERE fingerprint = $1", fingerprint).Scan(&vtype)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if db.rdb != nil {
		if err := db.rdb.Set(ctx, hashKey(fingerprint), vtype, hashCacheTTL).Err(); err != nil {
			db.log.Warnw("[ViolationDB] redis cache fill failed", "error", err)
		}
	}
	return models.ViolationType(vtype), true, nil
}

// Record appends a confirmed violation fingerprint. Idempotent: recording the
// same fingerprint twice keeps the first row.
func (db *ViolationDB) Record(ctx context.Context, fingerprint string, vtype models.ViolationType) error {
	_, err := db.pool.Exec(ctx,
		"INSERT INTO violation_hashes (fingerprint, violation_type) VALUES ($1, $2) ON CONFLICT (fingerprint) DO NOTHING",
		fingerprint, string(vtype))
	if err != nil {
		return err
	}
	if db.rdb != nil {
		if err := db.rdb.Set(ctx, hashKey(fingerprint), string(vtype), hashCacheTTL).Err(); err != nil {
			db.log.Warnw("[ViolationDB] redis write-through failed", "error", err)
		}
	}
	return nil
}

// MemoryHashStore backs tests and single-node development.
type MemoryHashStore struct {
	mu     sync.RWMutex
	hashes map[string]models.ViolationType
	// Fail simulates an unreachable store.
	Fail bool
}

func NewMemoryHashStore() *MemoryHashStore {
	return &MemoryHashStore{hashes: make(map[string]models.ViolationType)}
}

func (s *MemoryHashStore) Lookup(_ context.Context, fingerprint string) (models.ViolationType, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Fail {
		return "", false, context.DeadlineExceeded
	}
	vtype, ok := s.hashes[fingerprint]
	return vtype, ok, nil
}

func (s *MemoryHashStore) Record(_ context.Context, fingerprint string, vtype models.ViolationType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return context.DeadlineExceeded
	}
	if _, exists := s.hashes[fingerprint]; !exists {
		s.hashes[fingerprint] = vtype
	}
	return nil
}
