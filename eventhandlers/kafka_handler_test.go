package eventhandlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sentinel-backend/models"
	"sentinel-backend/services"
)

func TestProcessMessageRecordsHash(t *testing.T) {
	hashes := services.NewMemoryHashStore()
	kh := &KafkaHandler{Hashes: hashes, Log: zap.NewNop().Sugar()}

	kh.processMessage(context.Background(), "ViolationHash:abc123:underage_content")

	vtype, known, err := hashes.Lookup(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, models.ViolationUnderage, vtype)
}

func TestProcessMessageIgnoresOtherTopicsFormats(t *testing.T) {
	hashes := services.NewMemoryHashStore()
	kh := &KafkaHandler{Hashes: hashes, Log: zap.NewNop().Sugar()}

	kh.processMessage(context.Background(), "SomethingElse:abc123:spam")
	kh.processMessage(context.Background(), "ViolationHash:missing-type")
	kh.processMessage(context.Background(), "ViolationHash::spam")

	_, known, err := hashes.Lookup(context.Background(), "abc123")
	require.NoError(t, err)
	assert.False(t, known)
}
