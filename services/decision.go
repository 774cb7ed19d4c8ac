package services

import "sentinel-backend/models"

// Decision is the engine's reduction of a violation set to one terminal
// status.
type Decision struct {
	Status      models.ModerationStatus
	Confidence  float64
	HumanReview bool
}

// Decide applies the ordered transition rules, first match wins:
//
//  1. any critical violation        -> rejected, 99, no review
//  2. any high violation            -> flagged, 85, review
//  3. any violation (low/medium)    -> flagged, 75, no review
//  4. clean, all collectors usable  -> approved, 95
//  5. clean, incomplete evidence    -> review_required, 0, review
//
// Caution wins when evidence is incomplete; immediate irreversible action is
// taken only when evidence is unambiguous. An unknown collector forces human
// review on every outcome except a critical rejection, and a degraded hash
// fast path keeps a clean approval but routes it through review.
func Decide(violations []models.Violation, unknownCount int, hashDegraded bool) Decision {
	var critical, high, any bool
	for _, v := range violations {
		any = true
		switch v.Severity {
		case models.SeverityCritical:
			critical = true
		case models.SeverityHigh:
			high = true
		}
	}

	var d Decision
	switch {
	case critical:
		return Decision{Status: models.StatusRejected, Confidence: 99, HumanReview: false}
	case high:
		d = Decision{Status: models.StatusFlagged, Confidence: 85, HumanReview: true}
	case any:
		d = Decision{Status: models.StatusFlagged, Confidence: 75, HumanReview: false}
	case unknownCount == 0:
		d = Decision{Status: models.StatusApproved, Confidence: 95, HumanReview: false}
	default:
		d = Decision{Status: models.StatusReviewRequired, Confidence: 0, HumanReview: true}
	}

	if unknownCount > 0 {
		d.HumanReview = true
	}
	if hashDegraded && d.Status == models.StatusApproved {
		d.HumanReview = true
	}
	return d
}
