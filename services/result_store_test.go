package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-backend/models"
)

func TestResultAmendExactlyOnce(t *testing.T) {
	store := NewMemoryResultStore()
	ctx := context.Background()

	result := &models.ModerationResult{
		ID:        "mod_1",
		ContentID: "c1",
		Status:    models.StatusFlagged,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Save(ctx, result))

	amended, err := store.Amend(ctx, "mod_1", models.StatusApproved, models.Resolution{
		ReviewerID: "rev1",
		Decision:   models.ReviewApprove,
		Notes:      "ok",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, amended.Status)
	require.NotNil(t, amended.Resolution)
	assert.False(t, amended.Resolution.DecidedAt.IsZero())

	// History appends once; a second amendment is refused.
	_, err = store.Amend(ctx, "mod_1", models.StatusRejected, models.Resolution{
		ReviewerID: "rev2",
		Decision:   models.ReviewReject,
	})
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	stored, err := store.Get(ctx, "mod_1")
	require.NoError(t, err)
	assert.Equal(t, "rev1", stored.Resolution.ReviewerID)
}

func TestResultGetUnknown(t *testing.T) {
	store := NewMemoryResultStore()
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
