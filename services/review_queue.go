package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"sentinel-backend/models"
)

var (
	// ErrNoEntries means the queue holds nothing leasable right now.
	ErrNoEntries = errors.New("no review entries available")
	// ErrEntryNotFound means the entry was already resolved or never existed.
	ErrEntryNotFound = errors.New("review entry not found")
	// ErrLeaseConflict means the caller does not hold the entry's lease.
	ErrLeaseConflict = errors.New("entry leased by another reviewer")
)

// escalationBump is added to an entry's priority when a reviewer escalates
// it to the second tier.
const escalationBump = 25

// ReviewStore is the durable priority queue behind the human-review path.
// Ordering: priority descending, enqueue time ascending within a band. A
// leased entry is invisible to other reviewers until resolved or expired;
// entries are never silently dropped.
type ReviewStore interface {
	Enqueue(ctx context.Context, entry *models.ReviewQueueEntry) error
	Lease(ctx context.Context, reviewerID string, leaseFor time.Duration) (*models.ReviewQueueEntry, error)
	Remove(ctx context.Context, entryID, reviewerID string) (*models.ReviewQueueEntry, error)
	Escalate(ctx context.Context, entryID, reviewerID, tier string) error
	RequeueExpired(ctx context.Context, now time.Time) (int, error)
	LogResolution(ctx context.Context, entryID, reviewerID string, decision models.ReviewDecision, notes string) error
	Pending(ctx context.Context) (int, error)
}

// PGReviewStore implements ReviewStore on Postgres. Leasing relies on
// FOR UPDATE SKIP LOCKED so two concurrent dequeues can never return the
// same entry.
type PGReviewStore struct {
	pool *pgxpool.Pool
}

func NewPGReviewStore(pool *pgxpool.Pool) *PGReviewStore {
	return &PGReviewStore{pool: pool}
}

func (s *PGReviewStore) Enqueue(ctx context.Context, entry *models.ReviewQueueEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_queue (id, result_id, priority, tier, enqueued_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.ResultID, entry.Priority, entry.Tier, entry.EnqueuedAt)
	return err
}

func (s *PGReviewStore) Lease(ctx context.Context, reviewerID string, leaseFor time.Duration) (*models.ReviewQueueEntry, error) {
	leasedUntil := time.Now().UTC().Add(leaseFor)
	var entry models.ReviewQueueEntry
	err := s.pool.QueryRow(ctx,
		`UPDATE review_queue SET reviewer_id = $1, leased_until = $2
		 WHERE id = (
			SELECT id FROM review_queue
			WHERE leased_until IS NULL OR leased_until < NOW()
			ORDER BY priority DESC, enqueued_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		 )
		 RETURNING id, result_id, priority, tier, enqueued_at`,
		reviewerID, leasedUntil).
		Scan(&entry.ID, &entry.ResultID, &entry.Priority, &entry.Tier, &entry.EnqueuedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNoEntries
	}
	if err != nil {
		return nil, err
	}
	entry.ReviewerID = reviewerID
	entry.LeasedUntil = leasedUntil
	return &entry, nil
}

func (s *PGReviewStore) Remove(ctx context.Context, entryID, reviewerID string) (*models.ReviewQueueEntry, error) {
	var entry models.ReviewQueueEntry
	err := s.pool.QueryRow(ctx,
		`DELETE FROM review_queue
		 WHERE id = $1 AND reviewer_id = $2 AND leased_until >= NOW()
		 RETURNING id, result_id, priority, tier, enqueued_at`,
		entryID, reviewerID).
		Scan(&entry.ID, &entry.ResultID, &entry.Priority, &entry.Tier, &entry.EnqueuedAt)
	if err == pgx.ErrNoRows {
		return nil, s.classifyMiss(ctx, entryID)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *PGReviewStore) classifyMiss(ctx context.Context, entryID string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM review_queue WHERE id = $1)", entryID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrLeaseConflict
	}
	return ErrEntryNotFound
}

func (s *PGReviewStore) Escalate(ctx context.Context, entryID, reviewerID, tier string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_queue
		 SET priority = priority + $1, tier = $2, reviewer_id = NULL, leased_until = NULL
		 WHERE id = $3 AND reviewer_id = $4`,
		escalationBump, tier, entryID, reviewerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMiss(ctx, entryID)
	}
	return nil
}

func (s *PGReviewStore) RequeueExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_queue SET reviewer_id = NULL, leased_until = NULL
		 WHERE leased_until IS NOT NULL AND leased_until < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGReviewStore) LogResolution(ctx context.Context, entryID, reviewerID string, decision models.ReviewDecision, notes string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_log (entry_id, reviewer_id, decision, notes, decided_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		entryID, reviewerID, string(decision), notes)
	return err
}

func (s *PGReviewStore) Pending(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM review_queue").Scan(&n)
	return n, err
}

// MemoryReviewStore backs tests and single-node development.
type MemoryReviewStore struct {
	mu      sync.Mutex
	entries []*models.ReviewQueueEntry
	log     []resolutionRecord
}

type resolutionRecord struct {
	EntryID    string
	ReviewerID string
	Decision   models.ReviewDecision
	Notes      string
	DecidedAt  time.Time
}

func NewMemoryReviewStore() *MemoryReviewStore {
	return &MemoryReviewStore{}
}

func (s *MemoryReviewStore) Enqueue(_ context.Context, entry *models.ReviewQueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *entry
	s.entries = append(s.entries, &clone)
	sort.SliceStable(s.entries, func(i, j int) bool {
		if s.entries[i].Priority != s.entries[j].Priority {
			return s.entries[i].Priority > s.entries[j].Priority
		}
		return s.entries[i].EnqueuedAt.Before(s.entries[j].EnqueuedAt)
	})
	return nil
}

func (s *MemoryReviewStore) Lease(_ context.Context, reviewerID string, leaseFor time.Duration) (*models.ReviewQueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, entry := range s.entries {
		if entry.LeasedUntil.After(now) {
			continue
		}
		entry.ReviewerID = reviewerID
		entry.LeasedUntil = now.Add(leaseFor)
		clone := *entry
		return &clone, nil
	}
	return nil, ErrNoEntries
}

func (s *MemoryReviewStore) Remove(_ context.Context, entryID, reviewerID string) (*models.ReviewQueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.entries {
		if entry.ID != entryID {
			continue
		}
		if entry.ReviewerID != reviewerID || entry.LeasedUntil.Before(time.Now().UTC()) {
			return nil, ErrLeaseConflict
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		return entry, nil
	}
	return nil, ErrEntryNotFound
}

func (s *MemoryReviewStore) Escalate(_ context.Context, entryID, reviewerID, tier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.ID != entryID {
			continue
		}
		if entry.ReviewerID != reviewerID {
			return ErrLeaseConflict
		}
		entry.Priority += escalationBump
		entry.Tier = tier
		entry.ReviewerID = ""
		entry.LeasedUntil = time.Time{}
		sort.SliceStable(s.entries, func(i, j int) bool {
			if s.entries[i].Priority != s.entries[j].Priority {
				return s.entries[i].Priority > s.entries[j].Priority
			}
			return s.entries[i].EnqueuedAt.Before(s.entries[j].EnqueuedAt)
		})
		return nil
	}
	return ErrEntryNotFound
}

func (s *MemoryReviewStore) RequeueExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entry := range s.entries {
		if !entry.LeasedUntil.IsZero() && entry.LeasedUntil.Before(now) {
			entry.ReviewerID = ""
			entry.LeasedUntil = time.Time{}
			n++
		}
	}
	return n, nil
}

func (s *MemoryReviewStore) LogResolution(_ context.Context, entryID, reviewerID string, decision models.ReviewDecision, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, resolutionRecord{
		EntryID:    entryID,
		ReviewerID: reviewerID,
		Decision:   decision,
		Notes:      notes,
		DecidedAt:  time.Now().UTC(),
	})
	return nil
}

func (s *MemoryReviewStore) Pending(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}
