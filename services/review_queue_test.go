package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-backend/models"
)

func entryWith(id string, priority int, enqueued time.Time) *models.ReviewQueueEntry {
	return &models.ReviewQueueEntry{
		ID:         id,
		ResultID:   "mod_" + id,
		Priority:   priority,
		Tier:       "standard",
		EnqueuedAt: enqueued,
	}
}

func TestLeasePriorityOrdering(t *testing.T) {
	store := NewMemoryReviewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Enqueue(ctx, entryWith("low", 3, now)))
	require.NoError(t, store.Enqueue(ctx, entryWith("high", 17, now.Add(time.Second))))
	require.NoError(t, store.Enqueue(ctx, entryWith("mid", 10, now.Add(2*time.Second))))

	first, err := store.Lease(ctx, "rev1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "high", first.ID)

	second, err := store.Lease(ctx, "rev1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "mid", second.ID)

	third, err := store.Lease(ctx, "rev1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "low", third.ID)

	_, err = store.Lease(ctx, "rev1", time.Minute)
	assert.ErrorIs(t, err, ErrNoEntries)
}

func TestLeaseFIFOWithinPriorityBand(t *testing.T) {
	store := NewMemoryReviewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Enqueue(ctx, entryWith("second", 7, now.Add(time.Second))))
	require.NoError(t, store.Enqueue(ctx, entryWith("first", 7, now)))

	leased, err := store.Lease(ctx, "rev1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "first", leased.ID)
}

func TestNoDoubleLease(t *testing.T) {
	store := NewMemoryReviewStore()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, store.Enqueue(ctx, entryWith(string(rune('a'+i)), i, time.Now().UTC())))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(reviewer int) {
			defer wg.Done()
			entry, err := store.Lease(ctx, "rev", time.Minute)
			if err != nil {
				return
			}
			mu.Lock()
			seen[entry.ID]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, seen, 10)
	for id, count := range seen {
		assert.Equal(t, 1, count, "entry %s leased more than once", id)
	}
}

func TestLeaseExpiryRequeuesAtOriginalPriority(t *testing.T) {
	store := NewMemoryReviewStore()
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, entryWith("e1", 9, time.Now().UTC())))

	leased, err := store.Lease(ctx, "rev1", 10*time.Millisecond)
	require.NoError(t, err)

	// Invisible while leased.
	_, err = store.Lease(ctx, "rev2", time.Minute)
	assert.ErrorIs(t, err, ErrNoEntries)

	time.Sleep(20 * time.Millisecond)
	n, err := store.RequeueExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := store.Lease(ctx, "rev2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, leased.ID, again.ID)
	assert.Equal(t, 9, again.Priority)
}

func TestRemoveRequiresLeaseHolder(t *testing.T) {
	store := NewMemoryReviewStore()
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, entryWith("e1", 5, time.Now().UTC())))
	_, err := store.Lease(ctx, "rev1", time.Minute)
	require.NoError(t, err)

	_, err = store.Remove(ctx, "e1", "rev2")
	assert.ErrorIs(t, err, ErrLeaseConflict)

	removed, err := store.Remove(ctx, "e1", "rev1")
	require.NoError(t, err)
	assert.Equal(t, "e1", removed.ID)

	_, err = store.Remove(ctx, "e1", "rev1")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestEscalateBumpsPriorityAndReleases(t *testing.T) {
	store := NewMemoryReviewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Enqueue(ctx, entryWith("e1", 5, now)))
	require.NoError(t, store.Enqueue(ctx, entryWith("e2", 20, now)))

	leased, err := store.Lease(ctx, "rev1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "e2", leased.ID)

	require.NoError(t, store.Escalate(ctx, "e2", "rev1", "legal"))

	// Released and still first: 20 + bump outranks 5.
	again, err := store.Lease(ctx, "rev2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "e2", again.ID)
	assert.Equal(t, 45, again.Priority)
	assert.Equal(t, "legal", again.Tier)
}
