package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sentinel-backend/models"
)

func TestFingerprintIdempotent(t *testing.T) {
	a := &models.ContentItem{ID: "a", Payload: []byte("same bytes")}
	b := &models.ContentItem{ID: "b", Payload: []byte("same bytes")}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	c := &models.ContentItem{ID: "c", Payload: []byte("different bytes")}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestFingerprintTextFallback(t *testing.T) {
	a := &models.ContentItem{ID: "a", Text: "hello"}
	b := &models.ContentItem{ID: "b", Text: "hello"}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestHashMatcherCheck(t *testing.T) {
	store := NewMemoryHashStore()
	matcher := NewHashMatcher(store, zap.NewNop().Sugar())

	item := &models.ContentItem{ID: "x", Payload: []byte("known bad")}
	require.NoError(t, store.Record(context.Background(), Fingerprint(item), models.ViolationIllegal))

	match := matcher.Check(context.Background(), item)
	assert.True(t, match.Known)
	assert.Equal(t, models.ViolationIllegal, match.Type)
	assert.False(t, match.Degraded)

	// Identical content yields identical results.
	again := matcher.Check(context.Background(), item)
	assert.Equal(t, match.Known, again.Known)
	assert.Equal(t, match.Fingerprint, again.Fingerprint)
}

func TestHashMatcherStoreUnavailableFailsOpen(t *testing.T) {
	store := NewMemoryHashStore()
	store.Fail = true
	matcher := NewHashMatcher(store, zap.NewNop().Sugar())

	match := matcher.Check(context.Background(), &models.ContentItem{ID: "x", Payload: []byte("anything")})
	assert.False(t, match.Known)
	assert.True(t, match.Degraded)
	assert.NotEmpty(t, match.Fingerprint)
}
