package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"sentinel-backend/collectors"
	"sentinel-backend/models"
)

type ChannelStatus string

const (
	ChannelSafe      ChannelStatus = "safe"
	ChannelWarning   ChannelStatus = "warning"
	ChannelViolation ChannelStatus = "violation"
)

const (
	ActionPauseStream  = "pause_stream"
	ActionMuteAudio    = "mute_audio"
	ActionModerateChat = "moderate_chat"
)

// WindowResult is the per-window outcome for one stream. There is no
// terminal state: every action is reversible and re-evaluated next window.
type WindowResult struct {
	FrameStatus      ChannelStatus `json:"frame_status"`
	AudioStatus      ChannelStatus `json:"audio_status"`
	ChatStatus       ChannelStatus `json:"chat_status"`
	ImmediateActions []string      `json:"immediate_actions"`
	Confidence       float64       `json:"confidence"`
}

// ChannelAnalyzers are the three collectors a livestream window fans out to.
type ChannelAnalyzers struct {
	Frame collectors.Collector
	Audio collectors.Collector
	Chat  collectors.Collector
}

type streamState struct {
	actions map[string]bool
	cancel  context.CancelFunc
}

// LivestreamCoordinator analyzes rolling windows of frame, audio, and chat
// in parallel. Streams are independent: one stream's slow analysis never
// delays another's.
type LivestreamCoordinator struct {
	analyzers ChannelAnalyzers
	policy    models.ModerationPolicy
	timeout   time.Duration
	log       *zap.SugaredLogger

	mu      sync.Mutex
	streams map[string]*streamState
}

func NewLivestreamCoordinator(analyzers ChannelAnalyzers, policy models.ModerationPolicy, timeout time.Duration, log *zap.SugaredLogger) *LivestreamCoordinator {
	return &LivestreamCoordinator{
		analyzers: analyzers,
		policy:    policy,
		timeout:   timeout,
		log:       log,
		streams:   make(map[string]*streamState),
	}
}

type channelOutcome struct {
	status     ChannelStatus
	severity   models.Severity
	confidence float64
}

// SubmitWindow analyzes one window and returns per-channel statuses plus the
// immediate actions now in effect. A clean window lifts actions applied by
// earlier windows.
func (lc *LivestreamCoordinator) SubmitWindow(ctx context.Context, streamID string, frame, audio []byte, chat []string) (WindowResult, error) {
	wctx, cancel := context.WithTimeout(ctx, lc.timeout)

	lc.mu.Lock()
	state, ok := lc.streams[streamID]
	if !ok {
		state = &streamState{actions: make(map[string]bool)}
		lc.streams[streamID] = state
	}
	state.cancel = cancel
	lc.mu.Unlock()
	defer cancel()

	var frameOut, audioOut, chatOut channelOutcome
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		frameOut = lc.analyzeChannel(wctx, lc.analyzers.Frame, &models.ContentItem{
			ID:      streamID + "#frame",
			Type:    models.ContentLivestream,
			Payload: frame,
		})
	}()
	go func() {
		defer wg.Done()
		audioOut = lc.analyzeChannel(wctx, lc.analyzers.Audio, &models.ContentItem{
			ID:      streamID + "#audio",
			Type:    models.ContentAudio,
			Payload: audio,
		})
	}()
	go func() {
		defer wg.Done()
		chatOut = lc.analyzeChannel(wctx, lc.analyzers.Chat, &models.ContentItem{
			ID:   streamID + "#chat",
			Type: models.ContentText,
			Text: strings.Join(chat, "\n"),
		})
	}()
	wg.Wait()

	actions := make(map[string]bool)
	if frameOut.severity == models.SeverityCritical {
		actions[ActionPauseStream] = true
	}
	if audioOut.severity == models.SeverityCritical {
		actions[ActionMuteAudio] = true
	}
	if chatOut.severity == models.SeverityCritical || chatOut.severity == models.SeverityHigh {
		actions[ActionModerateChat] = true
	}

	lc.mu.Lock()
	for action := range state.actions {
		if !actions[action] {
			lc.log.Infow("[Livestream] lifting action after clean window", "stream_id", streamID, "action", action)
		}
	}
	state.actions = actions
	lc.mu.Unlock()

	list := make([]string, 0, len(actions))
	for action := range actions {
		list = append(list, action)
	}
	sort.Strings(list)

	// The weakest channel bounds overall confidence.
	confidence := frameOut.confidence
	if audioOut.confidence < confidence {
		confidence = audioOut.confidence
	}
	if chatOut.confidence < confidence {
		confidence = chatOut.confidence
	}

	return WindowResult{
		FrameStatus:      frameOut.status,
		AudioStatus:      audioOut.status,
		ChatStatus:       chatOut.status,
		ImmediateActions: list,
		Confidence:       confidence,
	}, nil
}

func (lc *LivestreamCoordinator) analyzeChannel(ctx context.Context, c collectors.Collector, item *models.ContentItem) channelOutcome {
	ev, err := c.Analyze(ctx, item)
	if err != nil {
		lc.log.Warnw("[Livestream] channel analyzer failed", "collector", c.Name(), "item", item.ID, "error", err)
		// No usable evidence: warn rather than certify safety.
		return channelOutcome{status: ChannelWarning, confidence: 0}
	}

	violations := Evaluate([]models.Evidence{ev}, lc.policy)
	if len(violations) == 0 {
		return channelOutcome{status: ChannelSafe, confidence: 100 - ev.Confidence}
	}

	top := violations[0]
	out := channelOutcome{severity: top.Severity, confidence: top.Confidence}
	switch top.Severity {
	case models.SeverityCritical, models.SeverityHigh:
		out.status = ChannelViolation
	case models.SeverityMedium:
		out.status = ChannelWarning
	default:
		out.status = ChannelSafe
	}
	return out
}

// EndStream cancels the stream's in-flight window analysis and drops its
// state. Safe to call for unknown streams.
func (lc *LivestreamCoordinator) EndStream(streamID string) {
	lc.mu.Lock()
	state, ok := lc.streams[streamID]
	if ok {
		delete(lc.streams, streamID)
	}
	lc.mu.Unlock()
	if ok && state.cancel != nil {
		state.cancel()
	}
}
