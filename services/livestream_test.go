package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sentinel-backend/models"
)

// scriptedCollector returns a fixed evidence per item id suffix, so each
// channel of a window can be scripted independently.
type scriptedCollector struct {
	mu       sync.Mutex
	evidence map[string]models.Evidence
	err      error
}

func (s *scriptedCollector) Name() string              { return "channel_analyzer" }
func (s *scriptedCollector) Kind() models.EvidenceKind { return models.EvidenceAIDetection }

func (s *scriptedCollector) Analyze(_ context.Context, item *models.ContentItem) (models.Evidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.Evidence{}, s.err
	}
	if ev, ok := s.evidence[item.ID]; ok {
		return ev, nil
	}
	return models.Evidence{Kind: s.Kind(), Confidence: 2, Source: s.Name()}, nil
}

func (s *scriptedCollector) set(itemID string, ev models.Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence[itemID] = ev
}

func newCoordinatorFixture(t *testing.T) (*LivestreamCoordinator, *scriptedCollector) {
	t.Helper()
	analyzer := &scriptedCollector{evidence: make(map[string]models.Evidence)}
	coordinator := NewLivestreamCoordinator(ChannelAnalyzers{
		Frame: analyzer,
		Audio: analyzer,
		Chat:  analyzer,
	}, testPolicy(t), 200*time.Millisecond, zap.NewNop().Sugar())
	return coordinator, analyzer
}

func TestWindowChatHarassmentModeratesChatOnly(t *testing.T) {
	coordinator, analyzer := newCoordinatorFixture(t)
	analyzer.set("s1#chat", models.Evidence{
		Kind:       models.EvidenceAIDetection,
		Candidate:  models.ViolationHarassment,
		Confidence: 95,
		Source:     "channel_analyzer",
	})

	result, err := coordinator.SubmitWindow(context.Background(), "s1", []byte("frame"), []byte("audio"), []string{"abusive message"})
	require.NoError(t, err)

	// High-severity chat finding moderates chat; frame and audio unaffected.
	assert.Equal(t, ChannelSafe, result.FrameStatus)
	assert.Equal(t, ChannelSafe, result.AudioStatus)
	assert.Equal(t, ChannelViolation, result.ChatStatus)
	assert.Equal(t, []string{ActionModerateChat}, result.ImmediateActions)
}

func TestWindowCriticalFramePausesStream(t *testing.T) {
	coordinator, analyzer := newCoordinatorFixture(t)
	analyzer.set("s1#frame", models.Evidence{
		Kind:       models.EvidenceAIDetection,
		Candidate:  models.ViolationNonConsensual,
		Confidence: 92,
		Source:     "channel_analyzer",
	})

	result, err := coordinator.SubmitWindow(context.Background(), "s1", []byte("frame"), []byte("audio"), nil)
	require.NoError(t, err)
	assert.Equal(t, ChannelViolation, result.FrameStatus)
	assert.Equal(t, []string{ActionPauseStream}, result.ImmediateActions)
}

func TestWindowCriticalAudioMutes(t *testing.T) {
	coordinator, analyzer := newCoordinatorFixture(t)
	analyzer.set("s1#audio", models.Evidence{
		Kind:       models.EvidenceAIDetection,
		Candidate:  models.ViolationIllegal,
		Confidence: 95,
		Source:     "channel_analyzer",
	})

	result, err := coordinator.SubmitWindow(context.Background(), "s1", []byte("frame"), []byte("audio"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{ActionMuteAudio}, result.ImmediateActions)
}

func TestCleanWindowLiftsActions(t *testing.T) {
	coordinator, analyzer := newCoordinatorFixture(t)
	analyzer.set("s1#frame", models.Evidence{
		Kind:       models.EvidenceAIDetection,
		Candidate:  models.ViolationNonConsensual,
		Confidence: 92,
		Source:     "channel_analyzer",
	})

	result, err := coordinator.SubmitWindow(context.Background(), "s1", []byte("frame"), nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{ActionPauseStream}, result.ImmediateActions)

	// Next window is clean: the pause lifts.
	analyzer.set("s1#frame", models.Evidence{Kind: models.EvidenceAIDetection, Confidence: 2, Source: "channel_analyzer"})
	result, err = coordinator.SubmitWindow(context.Background(), "s1", []byte("frame"), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.ImmediateActions)
	assert.Equal(t, ChannelSafe, result.FrameStatus)
}

func TestWindowConfidenceIsWeakestChannel(t *testing.T) {
	coordinator, analyzer := newCoordinatorFixture(t)
	// Chat analyzer fails: zero confidence on that channel bounds the whole
	// window.
	analyzer.err = errors.New("analyzer down")

	result, err := coordinator.SubmitWindow(context.Background(), "s1", []byte("frame"), []byte("audio"), []string{"hi"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, ChannelWarning, result.FrameStatus)
	assert.Equal(t, ChannelWarning, result.AudioStatus)
	assert.Equal(t, ChannelWarning, result.ChatStatus)
}

func TestEndStreamUnknownIsSafe(t *testing.T) {
	coordinator, _ := newCoordinatorFixture(t)
	coordinator.EndStream("never-seen")
}

func TestStreamsAreIndependent(t *testing.T) {
	coordinator, analyzer := newCoordinatorFixture(t)
	analyzer.set("s1#frame", models.Evidence{
		Kind:       models.EvidenceAIDetection,
		Candidate:  models.ViolationNonConsensual,
		Confidence: 92,
		Source:     "channel_analyzer",
	})

	r1, err := coordinator.SubmitWindow(context.Background(), "s1", []byte("frame"), nil, nil)
	require.NoError(t, err)
	r2, err := coordinator.SubmitWindow(context.Background(), "s2", []byte("frame"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{ActionPauseStream}, r1.ImmediateActions)
	assert.Empty(t, r2.ImmediateActions)
}
