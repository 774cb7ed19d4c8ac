package services

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sentinel-backend/models"
)

// Analytics rolls pipeline outcomes up into throughput and accuracy metrics.
// The human-override rate is the signal policy tuning watches: a rising rate
// for a violation type means its threshold needs retuning. The aggregator
// only exposes the metric, it never changes policy itself.
type Analytics struct {
	mu              sync.Mutex
	statusCounts    map[models.ModerationStatus]int64
	overridesByType map[models.ViolationType]int64
	reviewed        int64
	overridden      int64
	processed       int64
	totalProcessing time.Duration

	outcomes       *prometheus.CounterVec
	overrides      *prometheus.CounterVec
	processingTime prometheus.Histogram
}

func NewAnalytics(reg prometheus.Registerer) *Analytics {
	factory := promauto.With(reg)
	return &Analytics{
		statusCounts:    make(map[models.ModerationStatus]int64),
		overridesByType: make(map[models.ViolationType]int64),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_moderation_outcomes_total",
			Help: "Moderation results by terminal status.",
		}, []string{"status"}),
		overrides: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_human_overrides_total",
			Help: "Automated decisions reversed by a human reviewer, by violation type.",
		}, []string{"violation_type"}),
		processingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_processing_seconds",
			Help:    "End-to-end moderation pipeline latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
}

func (a *Analytics) RecordOutcome(result *models.ModerationResult) {
	a.mu.Lock()
	a.statusCounts[result.Status]++
	a.processed++
	a.totalProcessing += result.ProcessingTime
	a.mu.Unlock()

	a.outcomes.WithLabelValues(string(result.Status)).Inc()
	a.processingTime.Observe(result.ProcessingTime.Seconds())
}

// RecordResolution counts a human decision. An override is a reversal of the
// automated outcome: approving flagged/rejected content, or rejecting
// approved content. Completing a review_required item is not a reversal.
func (a *Analytics) RecordResolution(prior models.ModerationStatus, decision models.ReviewDecision, vtypes []models.ViolationType) {
	override := false
	switch decision {
	case models.ReviewApprove:
		override = prior == models.StatusFlagged || prior == models.StatusRejected
	case models.ReviewReject:
		override = prior == models.StatusApproved
	}

	a.mu.Lock()
	a.reviewed++
	if override {
		a.overridden++
		for _, t := range vtypes {
			a.overridesByType[t]++
		}
	}
	a.mu.Unlock()

	if override {
		if len(vtypes) == 0 {
			a.overrides.WithLabelValues("none").Inc()
		}
		for _, t := range vtypes {
			a.overrides.WithLabelValues(string(t)).Inc()
		}
	}
}

// Snapshot is the on-demand analytics rollup served to the review surface.
type Snapshot struct {
	TotalProcessed    int64                             `json:"total_processed"`
	ByStatus          map[models.ModerationStatus]int64 `json:"by_status"`
	AvgProcessingMs   float64                           `json:"avg_processing_ms"`
	Reviewed          int64                             `json:"reviewed"`
	HumanOverrideRate float64                           `json:"human_override_rate"`
	OverridesByType   map[models.ViolationType]int64    `json:"overrides_by_type"`
	PendingReview     int                               `json:"pending_review"`
}

func (a *Analytics) Snapshot(pendingReview int) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	byStatus := make(map[models.ModerationStatus]int64, len(a.statusCounts))
	for s, n := range a.statusCounts {
		byStatus[s] = n
	}
	byType := make(map[models.ViolationType]int64, len(a.overridesByType))
	for t, n := range a.overridesByType {
		byType[t] = n
	}

	snap := Snapshot{
		TotalProcessed:  a.processed,
		ByStatus:        byStatus,
		Reviewed:        a.reviewed,
		OverridesByType: byType,
		PendingReview:   pendingReview,
	}
	if a.processed > 0 {
		snap.AvgProcessingMs = float64(a.totalProcessing.Milliseconds()) / float64(a.processed)
	}
	if a.reviewed > 0 {
		snap.HumanOverrideRate = float64(a.overridden) / float64(a.reviewed)
	}
	return snap
}
