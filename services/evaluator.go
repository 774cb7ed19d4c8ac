package services

import (
	"sort"

	"sentinel-backend/models"
)

// Evaluate maps collector evidence to violations under the given policy. It
// is a pure function: same evidence and policy always yield the same
// violations, which keeps it testable against fixtures.
//
// Evidence items supporting the same violation type merge into a single
// Violation citing all of them; there is never more than one violation per
// type per content item.
func Evaluate(evidence []models.Evidence, pol models.ModerationPolicy) []models.Violation {
	grouped := make(map[models.ViolationType][]models.Evidence)

	for _, ev := range evidence {
		if ev.Unknown || ev.Candidate == "" {
			continue
		}
		threshold, ok := pol.Thresholds[ev.Candidate]
		if !ok {
			continue
		}
		if ev.Confidence >= threshold || (ev.Candidate == models.ViolationUnderage && underageRisk(ev)) {
			grouped[ev.Candidate] = append(grouped[ev.Candidate], ev)
		}
	}

	violations := make([]models.Violation, 0, len(grouped))
	for vtype, evs := range grouped {
		confidence := 0.0
		for _, ev := range evs {
			if ev.Confidence > confidence {
				confidence = ev.Confidence
			}
		}
		severity := severityFor[vtype]
		violations = append(violations, models.Violation{
			Type:          vtype,
			Severity:      severity,
			Confidence:    confidence,
			Evidence:      evs,
			AutoAction:    actionFor[severity],
			PolicyVersion: pol.Version,
		})
	}

	// Deterministic output order: severity weight descending, then type.
	sort.Slice(violations, func(i, j int) bool {
		wi, wj := models.SeverityWeight[violations[i].Severity], models.SeverityWeight[violations[j].Severity]
		if wi != wj {
			return wi > wj
		}
		return violations[i].Type < violations[j].Type
	})
	return violations
}

// underageRisk applies the precautionary rule: a high age-risk tier or an
// estimated age under 18 is an underage candidate even when the raw
// confidence sits below the policy threshold.
func underageRisk(ev models.Evidence) bool {
	if ev.Age == nil {
		return false
	}
	return ev.Age.RiskLevel == models.RiskHigh || (ev.Age.EstimatedAge > 0 && ev.Age.EstimatedAge < 18)
}

// CountUnknown reports how many collectors failed to produce usable
// evidence. Unknown is a reason to require human review, never "safe".
func CountUnknown(evidence []models.Evidence) int {
	n := 0
	for _, ev := range evidence {
		if ev.Unknown {
			n++
		}
	}
	return n
}

// AgeSummary pulls the age-verification detail out of the evidence set, if
// the age verifier produced one.
func AgeSummary(evidence []models.Evidence) *models.AgeVerification {
	for _, ev := range evidence {
		if ev.Age != nil {
			return ev.Age
		}
	}
	return nil
}
