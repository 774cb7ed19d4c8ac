package models

import "time"

type ContentType string

const (
	ContentImage      ContentType = "image"
	ContentVideo      ContentType = "video"
	ContentText       ContentType = "text"
	ContentAudio      ContentType = "audio"
	ContentLivestream ContentType = "livestream"
)

type ModerationStatus string

const (
	StatusApproved       ModerationStatus = "approved"
	StatusRejected       ModerationStatus = "rejected"
	StatusFlagged        ModerationStatus = "flagged"
	StatusReviewRequired ModerationStatus = "review_required"
)

type ViolationType string

const (
	ViolationUnderage      ViolationType = "underage_content"
	ViolationViolent       ViolationType = "violent_content"
	ViolationIllegal       ViolationType = "illegal_activity"
	ViolationDeepfake      ViolationType = "deepfake"
	ViolationRevengePorn   ViolationType = "revenge_porn"
	ViolationNonConsensual ViolationType = "non_consensual"
	ViolationCopyright     ViolationType = "copyright_violation"
	ViolationSpam          ViolationType = "spam"
	ViolationHarassment    ViolationType = "harassment"
)

// AllViolationTypes is the closed set the policy loader validates against.
var AllViolationTypes = []ViolationType{
	ViolationUnderage, ViolationViolent, ViolationIllegal, ViolationDeepfake,
	ViolationRevengePorn, ViolationNonConsensual, ViolationCopyright,
	ViolationSpam, ViolationHarassment,
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityWeight drives review-queue priority.
var SeverityWeight = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   3,
	SeverityHigh:     7,
	SeverityCritical: 10,
}

type AutoAction string

const (
	ActionBlock              AutoAction = "block"
	ActionFlag               AutoAction = "flag"
	ActionReview             AutoAction = "review"
	ActionApproveWithWarning AutoAction = "approve_with_warning"
)

type EvidenceKind string

const (
	EvidenceVisual      EvidenceKind = "visual"
	EvidenceAudio       EvidenceKind = "audio"
	EvidenceMetadata    EvidenceKind = "metadata"
	EvidenceHashMatch   EvidenceKind = "hash_match"
	EvidenceAIDetection EvidenceKind = "ai_detection"
	EvidenceBiometric   EvidenceKind = "biometric"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type ConsentStatus string

const (
	ConsentVerified ConsentStatus = "verified"
	ConsentPending  ConsentStatus = "pending"
	ConsentDenied   ConsentStatus = "denied"
)

type Participant struct {
	ID      string        `json:"id"`
	Consent ConsentStatus `json:"consent_status"`
}

type Geolocation struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
}

// ContentItem is immutable once submitted; a re-submission after edit gets a
// new id. Downstream records reference it by ID only.
type ContentItem struct {
	ID           string            `json:"id"`
	Type         ContentType       `json:"type"`
	Payload      []byte            `json:"-"`
	PayloadRef   string            `json:"payload_ref,omitempty"`
	Text         string            `json:"text,omitempty"`
	OwnerID      string            `json:"owner_id"`
	SubmitterID  string            `json:"submitter_id"`
	Participants []Participant     `json:"participants,omitempty"`
	Location     *Geolocation      `json:"location,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	SubmittedAt  time.Time         `json:"submitted_at"`
}

// Evidence is one collector's finding. Unknown marks a collector that failed
// or timed out: confidence 0 and never treated as "safe".
type Evidence struct {
	Kind       EvidenceKind     `json:"kind"`
	Candidate  ViolationType    `json:"candidate,omitempty"`
	Confidence float64          `json:"confidence"`
	Source     string           `json:"source"`
	Unknown    bool             `json:"unknown,omitempty"`
	Payload    map[string]any   `json:"payload,omitempty"`
	Age        *AgeVerification `json:"age,omitempty"`
}

type AgeVerification struct {
	EstimatedAge     float64   `json:"estimated_age"`
	Confidence       float64   `json:"confidence"`
	ApparentAge      float64   `json:"apparent_age"`
	DocumentProvided bool      `json:"document_provided"`
	DocumentValid    bool      `json:"document_valid"`
	BiometricMatch   bool      `json:"biometric_match"`
	RiskLevel        RiskLevel `json:"risk_level"`
}

// Violation is append-only: superseding one means creating a new record with
// SupersedesID pointing at the old version.
type Violation struct {
	Type          ViolationType `json:"type"`
	Severity      Severity      `json:"severity"`
	Confidence    float64       `json:"confidence"`
	Evidence      []Evidence    `json:"evidence"`
	AutoAction    AutoAction    `json:"auto_action"`
	PolicyVersion int           `json:"policy_version"`
	SupersedesID  string        `json:"supersedes_id,omitempty"`
}

type ReviewDecision string

const (
	ReviewApprove  ReviewDecision = "approve"
	ReviewReject   ReviewDecision = "reject"
	ReviewEscalate ReviewDecision = "escalate"
)

// Resolution is appended to a ModerationResult by a human review; history is
// never overwritten.
type Resolution struct {
	ReviewerID string         `json:"reviewer_id"`
	Decision   ReviewDecision `json:"decision"`
	Notes      string         `json:"notes"`
	DecidedAt  time.Time      `json:"decided_at"`
}

type ModerationResult struct {
	ID                  string           `json:"id"`
	ContentID           string           `json:"content_id"`
	ContentType         ContentType      `json:"content_type"`
	Fingerprint         string           `json:"fingerprint,omitempty"`
	Status              ModerationStatus `json:"status"`
	Confidence          float64          `json:"confidence"`
	Violations          []Violation      `json:"violations"`
	AgeVerification     *AgeVerification `json:"age_verification,omitempty"`
	ProcessingTime      time.Duration    `json:"processing_time"`
	HumanReviewRequired bool             `json:"human_review_required"`
	Degraded            bool             `json:"degraded,omitempty"`
	Resolution          *Resolution      `json:"resolution,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// ReviewPriority sums severity weights over all violations.
func ReviewPriority(violations []Violation) int {
	p := 0
	for _, v := range violations {
		p += SeverityWeight[v.Severity]
	}
	return p
}

type ReviewQueueEntry struct {
	ID         string            `json:"id"`
	ResultID   string            `json:"result_id"`
	Result     *ModerationResult `json:"result,omitempty"`
	Priority   int               `json:"priority"`
	Tier       string            `json:"tier"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	ReviewerID string            `json:"reviewer_id,omitempty"`
	LeasedUntil time.Time        `json:"leased_until,omitempty"`
}

type PolicyLevel string

const (
	PolicyStrict   PolicyLevel = "strict"
	PolicyModerate PolicyLevel = "moderate"
	PolicyRelaxed  PolicyLevel = "relaxed"
)

// ModerationPolicy is read-only at evaluation time. Version is stamped on
// every Violation it produces.
type ModerationPolicy struct {
	Name             string                    `json:"name"`
	Version          int                       `json:"version"`
	Level            PolicyLevel               `json:"level"`
	Thresholds       map[ViolationType]float64 `json:"thresholds"`
	GeographicScope  []string                  `json:"geographic_scope,omitempty"`
	AutomatedActions bool                      `json:"automated_actions"`
}

// GenericReason maps a terminal status to the category shown to submitters.
// Raw evidence is never exposed to them.
func GenericReason(status ModerationStatus, violations []Violation) string {
	switch status {
	case StatusRejected:
		return "content violates platform policy"
	case StatusFlagged:
		if len(violations) > 0 {
			return "content requires additional checks"
		}
		return "content flagged"
	case StatusReviewRequired:
		return "content is pending review"
	default:
		return ""
	}
}
