package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sentinel-backend/models"
)

const legalTier = "legal"

// FeedbackEvent is published after every human resolution so collector
// calibration can learn from overrides.
type FeedbackEvent struct {
	EntryID     string                  `json:"entry_id"`
	ResultID    string                  `json:"result_id"`
	ContentID   string                  `json:"content_id"`
	ReviewerID  string                  `json:"reviewer_id"`
	Decision    models.ReviewDecision   `json:"decision"`
	Notes       string                  `json:"notes"`
	PriorStatus models.ModerationStatus `json:"prior_status"`
	NewStatus   models.ModerationStatus `json:"new_status"`
	Violations  []models.ViolationType  `json:"violations"`
	DecidedAt   time.Time               `json:"decided_at"`
}

type FeedbackPublisher interface {
	Publish(ctx context.Context, event FeedbackEvent) error
}

// ReviewService is the human-review escalation path: exclusive-lease
// dequeue, adjudication, and the feedback loop back into the violation
// database and analytics.
type ReviewService struct {
	store     ReviewStore
	results   ResultStore
	hashes    HashStore
	feedback  FeedbackPublisher
	analytics *Analytics
	lease     time.Duration
	log       *zap.SugaredLogger
}

func NewReviewService(store ReviewStore, results ResultStore, hashes HashStore, feedback FeedbackPublisher, analytics *Analytics, lease time.Duration, log *zap.SugaredLogger) *ReviewService {
	return &ReviewService{
		store:     store,
		results:   results,
		hashes:    hashes,
		feedback:  feedback,
		analytics: analytics,
		lease:     lease,
		log:       log,
	}
}

// Dequeue leases the highest-priority entry for the reviewer and attaches
// the full result, evidence included — reviewers see everything.
func (s *ReviewService) Dequeue(ctx context.Context, reviewerID string) (*models.ReviewQueueEntry, error) {
	entry, err := s.store.Lease(ctx, reviewerID, s.lease)
	if err != nil {
		return nil, err
	}
	result, err := s.results.Get(ctx, entry.ResultID)
	if err != nil {
		s.log.Errorw("[Review] leased entry has no result", "entry_id", entry.ID, "result_id", entry.ResultID, "error", err)
		return nil, err
	}
	entry.Result = result
	return entry, nil
}

// Resolve applies a reviewer decision. Approve and reject amend the result
// and remove the entry; escalate re-enqueues it at higher priority for the
// legal tier. Every resolution is logged with reviewer identity and notes.
func (s *ReviewService) Resolve(ctx context.Context, entryID, reviewerID string, decision models.ReviewDecision, notes string) (*models.ModerationResult, error) {
	if decision == models.ReviewEscalate {
		if err := s.store.Escalate(ctx, entryID, reviewerID, legalTier); err != nil {
			return nil, err
		}
		if err := s.store.LogResolution(ctx, entryID, reviewerID, decision, notes); err != nil {
			s.log.Errorw("[Review] failed to log escalation", "entry_id", entryID, "error", err)
		}
		s.log.Infow("[Review] entry escalated", "entry_id", entryID, "reviewer", reviewerID, "tier", legalTier)
		return nil, nil
	}

	var status models.ModerationStatus
	switch decision {
	case models.ReviewApprove:
		status = models.StatusApproved
	case models.ReviewReject:
		status = models.StatusRejected
	default:
		return nil, fmt.Errorf("unknown review decision %q", decision)
	}

	entry, err := s.store.Remove(ctx, entryID, reviewerID)
	if err != nil {
		return nil, err
	}

	prior, err := s.results.Get(ctx, entry.ResultID)
	if err != nil {
		return nil, err
	}
	priorStatus := prior.Status

	resolution := models.Resolution{
		ReviewerID: reviewerID,
		Decision:   decision,
		Notes:      notes,
		DecidedAt:  time.Now().UTC(),
	}
	result, err := s.results.Amend(ctx, entry.ResultID, status, resolution)
	if err != nil {
		return nil, err
	}

	if err := s.store.LogResolution(ctx, entryID, reviewerID, decision, notes); err != nil {
		s.log.Errorw("[Review] failed to log resolution", "entry_id", entryID, "error", err)
	}

	vtypes := make([]models.ViolationType, 0, len(result.Violations))
	for _, v := range result.Violations {
		vtypes = append(vtypes, v.Type)
	}
	s.analytics.RecordResolution(priorStatus, decision, vtypes)

	// A confirmed rejection feeds the fingerprint back into the violation
	// database so the fast path blocks the same bytes next time.
	if decision == models.ReviewReject && result.Fingerprint != "" {
		vtype := models.ViolationIllegal
		if len(vtypes) > 0 {
			vtype = vtypes[0]
		}
		if err := s.hashes.Record(ctx, result.Fingerprint, vtype); err != nil {
			s.log.Errorw("[Review] failed to record confirmed fingerprint", "result_id", result.ID, "error", err)
		}
	}

	if s.feedback != nil {
		event := FeedbackEvent{
			EntryID:     entryID,
			ResultID:    result.ID,
			ContentID:   result.ContentID,
			ReviewerID:  reviewerID,
			Decision:    decision,
			Notes:       notes,
			PriorStatus: priorStatus,
			NewStatus:   status,
			Violations:  vtypes,
			DecidedAt:   resolution.DecidedAt,
		}
		if err := s.feedback.Publish(ctx, event); err != nil {
			s.log.Errorw("[Review] failed to publish feedback event", "entry_id", entryID, "error", err)
		}
	}

	s.log.Infow("[Review] entry resolved", "entry_id", entryID, "reviewer", reviewerID, "decision", decision, "prior_status", priorStatus, "new_status", status)
	return result, nil
}

// Metrics returns the analytics snapshot including current queue depth.
func (s *ReviewService) Metrics(ctx context.Context) (Snapshot, error) {
	pending, err := s.store.Pending(ctx)
	if err != nil {
		s.log.Warnw("[Review] pending count unavailable", "error", err)
		pending = -1
	}
	return s.analytics.Snapshot(pending), nil
}

// SweepExpiredLeases returns timed-out leases to the queue at their original
// priority. Run periodically.
func (s *ReviewService) SweepExpiredLeases(ctx context.Context) {
	n, err := s.store.RequeueExpired(ctx, time.Now().UTC())
	if err != nil {
		s.log.Errorw("[Review] lease sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Infow("[Review] requeued expired leases", "count", n)
	}
}
