package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sentinel-backend/collectors"
	"sentinel-backend/models"
)

// Pipeline is the on-demand moderation path: hash fast-reject, then a
// fan-out/fan-in over the evidence collectors, then policy evaluation and
// the decision engine.
type Pipeline struct {
	collectors []collectors.Collector
	hash       *HashMatcher
	results    ResultStore
	reviews    ReviewStore
	hashes     HashStore
	policy     models.ModerationPolicy
	analytics  *Analytics
	timeout    time.Duration
	log        *zap.SugaredLogger
}

func NewPipeline(
	cols []collectors.Collector,
	hash *HashMatcher,
	results ResultStore,
	reviews ReviewStore,
	hashes HashStore,
	policy models.ModerationPolicy,
	analytics *Analytics,
	timeout time.Duration,
	log *zap.SugaredLogger,
) *Pipeline {
	return &Pipeline{
		collectors: cols,
		hash:       hash,
		results:    results,
		reviews:    reviews,
		hashes:     hashes,
		policy:     policy,
		analytics:  analytics,
		timeout:    timeout,
		log:        log,
	}
}

// Submit moderates one content item and returns its result. The returned
// status may be non-final: flagged and review_required items can change
// after human review.
func (p *Pipeline) Submit(ctx context.Context, item *models.ContentItem) (*models.ModerationResult, error) {
	start := time.Now()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.SubmittedAt.IsZero() {
		item.SubmittedAt = start.UTC()
	}

	match := p.hash.Check(ctx, item)
	if match.Known {
		result := p.instantRejection(item, match, start)
		p.persist(ctx, result)
		p.analytics.RecordOutcome(result)
		p.log.Infow("[Pipeline] fast-path rejection", "content_id", item.ID, "violation_type", result.Violations[0].Type)
		return result, nil
	}

	evidence := p.collect(ctx, item)
	violations := Evaluate(evidence, p.policy)
	unknown := CountUnknown(evidence)
	decision := Decide(violations, unknown, match.Degraded)

	result := &models.ModerationResult{
		ID:                  "mod_" + uuid.NewString(),
		ContentID:           item.ID,
		ContentType:         item.Type,
		Fingerprint:         match.Fingerprint,
		Status:              decision.Status,
		Confidence:          decision.Confidence,
		Violations:          violations,
		AgeVerification:     AgeSummary(evidence),
		ProcessingTime:      time.Since(start),
		HumanReviewRequired: decision.HumanReview,
		Degraded:            match.Degraded || unknown > 0,
		CreatedAt:           start.UTC(),
	}

	p.persist(ctx, result)

	if result.HumanReviewRequired {
		entry := &models.ReviewQueueEntry{
			ID:         uuid.NewString(),
			ResultID:   result.ID,
			Priority:   models.ReviewPriority(violations),
			Tier:       "standard",
			EnqueuedAt: time.Now().UTC(),
		}
		if err := p.reviews.Enqueue(ctx, entry); err != nil {
			p.log.Errorw("[Pipeline] failed to enqueue for review", "result_id", result.ID, "error", err)
		}
	}

	// Confirmed critical findings feed the fingerprint store so the same
	// bytes are fast-rejected next time.
	for _, v := range violations {
		if v.Severity == models.SeverityCritical {
			if err := p.hashes.Record(ctx, match.Fingerprint, v.Type); err != nil {
				p.log.Warnw("[Pipeline] failed to record violation fingerprint", "content_id", item.ID, "error", err)
			}
			break
		}
	}

	p.analytics.RecordOutcome(result)
	p.log.Infow("[Pipeline] moderation complete",
		"content_id", item.ID,
		"status", result.Status,
		"violations", len(violations),
		"unknown_collectors", unknown,
		"processing_ms", result.ProcessingTime.Milliseconds())
	return result, nil
}

// collect fans the collectors out concurrently under a shared deadline. A
// collector that errors or times out contributes unknown evidence; it never
// blocks the others or aborts the pipeline.
func (p *Pipeline) collect(ctx context.Context, item *models.ContentItem) []models.Evidence {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	evidence := make([]models.Evidence, len(p.collectors))
	var wg sync.WaitGroup
	for i, c := range p.collectors {
		wg.Add(1)
		go func(i int, c collectors.Collector) {
			defer wg.Done()
			ev, err := c.Analyze(cctx, item)
			if err != nil {
				if errors.Is(err, collectors.ErrNotConfigured) {
					p.log.Debugw("[Pipeline] collector in degraded mode", "collector", c.Name())
				} else {
					p.log.Warnw("[Pipeline] collector failed", "collector", c.Name(), "content_id", item.ID, "error", err)
				}
				evidence[i] = collectors.UnknownEvidence(c.Name(), c.Kind())
				return
			}
			evidence[i] = ev
		}(i, c)
	}
	wg.Wait()
	return evidence
}

func (p *Pipeline) instantRejection(item *models.ContentItem, match Match, start time.Time) *models.ModerationResult {
	vtype := match.Type
	if vtype == "" {
		vtype = models.ViolationIllegal
	}
	violation := models.Violation{
		Type:       vtype,
		Severity:   models.SeverityCritical,
		Confidence: 100,
		Evidence: []models.Evidence{{
			Kind:       models.EvidenceHashMatch,
			Candidate:  vtype,
			Confidence: 100,
			Source:     "violation_database",
		}},
		AutoAction:    models.ActionBlock,
		PolicyVersion: p.policy.Version,
	}
	return &models.ModerationResult{
		ID:                  "mod_" + uuid.NewString(),
		ContentID:           item.ID,
		ContentType:         item.Type,
		Fingerprint:         match.Fingerprint,
		Status:              models.StatusRejected,
		Confidence:          100,
		Violations:          []models.Violation{violation},
		ProcessingTime:      time.Since(start),
		HumanReviewRequired: false,
		CreatedAt:           start.UTC(),
	}
}

// persist saves the result. A storage failure must not drop the submission:
// the caller still gets a result, downgraded to review_required since its
// durability cannot be certified.
func (p *Pipeline) persist(ctx context.Context, result *models.ModerationResult) {
	if err := p.results.Save(ctx, result); err != nil {
		p.log.Errorw("[Pipeline] failed to persist result", "result_id", result.ID, "error", err)
		if result.Status != models.StatusRejected {
			result.Status = models.StatusReviewRequired
			result.Confidence = 0
			result.HumanReviewRequired = true
		}
		result.Degraded = true
	}
}
