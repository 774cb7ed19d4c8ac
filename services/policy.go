package services

import (
	"fmt"

	"sentinel-backend/models"
)

// moderateThresholds is the authoritative confidence threshold table for the
// moderate level. Strict lowers every threshold by 10, relaxed raises it by
// 10, clamped to [50, 95].
var moderateThresholds = map[models.ViolationType]float64{
	models.ViolationUnderage:      70,
	models.ViolationViolent:       75,
	models.ViolationIllegal:       70,
	models.ViolationDeepfake:      80,
	models.ViolationRevengePorn:   65,
	models.ViolationNonConsensual: 65,
	models.ViolationCopyright:     85,
	models.ViolationSpam:          90,
	models.ViolationHarassment:    80,
}

// severityFor is the fixed violation-type to severity mapping.
var severityFor = map[models.ViolationType]models.Severity{
	models.ViolationUnderage:      models.SeverityCritical,
	models.ViolationIllegal:       models.SeverityCritical,
	models.ViolationRevengePorn:   models.SeverityCritical,
	models.ViolationNonConsensual: models.SeverityCritical,
	models.ViolationDeepfake:      models.SeverityHigh,
	models.ViolationViolent:       models.SeverityHigh,
	models.ViolationHarassment:    models.SeverityHigh,
	models.ViolationCopyright:     models.SeverityMedium,
	models.ViolationSpam:          models.SeverityLow,
}

var actionFor = map[models.Severity]models.AutoAction{
	models.SeverityCritical: models.ActionBlock,
	models.SeverityHigh:     models.ActionReview,
	models.SeverityMedium:   models.ActionFlag,
	models.SeverityLow:      models.ActionApproveWithWarning,
}

const policyVersion = 1

// LoadPolicy builds the policy for a level and validates that every known
// violation type has a threshold. A gap here is a configuration error and
// must abort startup; defaulting would silently approve everything of that
// type.
func LoadPolicy(level models.PolicyLevel) (models.ModerationPolicy, error) {
	var shift float64
	switch level {
	case models.PolicyStrict:
		shift = -10
	case models.PolicyModerate:
		shift = 0
	case models.PolicyRelaxed:
		shift = 10
	default:
		return models.ModerationPolicy{}, fmt.Errorf("unknown policy level %q", level)
	}

	thresholds := make(map[models.ViolationType]float64, len(moderateThresholds))
	for t, base := range moderateThresholds {
		v := base + shift
		if v < 50 {
			v = 50
		}
		if v > 95 {
			v = 95
		}
		thresholds[t] = v
	}

	for _, t := range models.AllViolationTypes {
		if _, ok := thresholds[t]; !ok {
			return models.ModerationPolicy{}, fmt.Errorf("policy %q missing threshold for violation type %q", level, t)
		}
		if _, ok := severityFor[t]; !ok {
			return models.ModerationPolicy{}, fmt.Errorf("policy %q missing severity for violation type %q", level, t)
		}
	}

	return models.ModerationPolicy{
		Name:             string(level),
		Version:          policyVersion,
		Level:            level,
		Thresholds:       thresholds,
		AutomatedActions: true,
	}, nil
}
