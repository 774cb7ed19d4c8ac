package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentinel-backend/models"
)

func violationWith(severity models.Severity) models.Violation {
	return models.Violation{Type: models.ViolationDeepfake, Severity: severity, Confidence: 90}
}

func TestDecideCriticalRejects(t *testing.T) {
	d := Decide([]models.Violation{
		violationWith(models.SeverityCritical),
		violationWith(models.SeverityLow),
	}, 0, false)
	assert.Equal(t, models.StatusRejected, d.Status)
	assert.Equal(t, 99.0, d.Confidence)
	assert.False(t, d.HumanReview)
}

func TestDecideCriticalNeverOverriddenByUnknown(t *testing.T) {
	// A certain critical finding acts immediately even with incomplete
	// evidence elsewhere.
	d := Decide([]models.Violation{violationWith(models.SeverityCritical)}, 2, true)
	assert.Equal(t, models.StatusRejected, d.Status)
	assert.False(t, d.HumanReview)
}

func TestDecideHighFlagsWithReview(t *testing.T) {
	d := Decide([]models.Violation{violationWith(models.SeverityHigh)}, 0, false)
	assert.Equal(t, models.StatusFlagged, d.Status)
	assert.Equal(t, 85.0, d.Confidence)
	assert.True(t, d.HumanReview)
}

func TestDecideLowMediumFlagsNoReview(t *testing.T) {
	d := Decide([]models.Violation{
		violationWith(models.SeverityLow),
		violationWith(models.SeverityMedium),
	}, 0, false)
	assert.Equal(t, models.StatusFlagged, d.Status)
	assert.Equal(t, 75.0, d.Confidence)
	assert.False(t, d.HumanReview)
}

func TestDecideCleanApproves(t *testing.T) {
	d := Decide(nil, 0, false)
	assert.Equal(t, models.StatusApproved, d.Status)
	assert.Equal(t, 95.0, d.Confidence)
	assert.False(t, d.HumanReview)
}

func TestDecideUnknownRequiresReview(t *testing.T) {
	d := Decide(nil, 1, false)
	assert.Equal(t, models.StatusReviewRequired, d.Status)
	assert.Equal(t, 0.0, d.Confidence)
	assert.True(t, d.HumanReview)
}

func TestDecideUnknownForcesReviewOnFlagged(t *testing.T) {
	// Low-severity findings alone skip review, but an unknown collector
	// means the evidence set is incomplete.
	d := Decide([]models.Violation{violationWith(models.SeverityLow)}, 1, false)
	assert.Equal(t, models.StatusFlagged, d.Status)
	assert.True(t, d.HumanReview)
}

func TestDecideHashDegradedWidensReview(t *testing.T) {
	d := Decide(nil, 0, true)
	assert.Equal(t, models.StatusApproved, d.Status)
	assert.True(t, d.HumanReview)
}
