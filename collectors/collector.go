package collectors

import (
	"context"
	"errors"

	"sentinel-backend/models"
)

// ErrNotConfigured marks a collector with no backend URL. The pipeline turns
// it into unknown evidence, which always ends in review_required rather than
// a fabricated score.
var ErrNotConfigured = errors.New("collector backend not configured")

// Collector is one independent analyzer. Implementations must be safe for
// concurrent use and must honor ctx cancellation; they communicate results
// only, never shared state.
type Collector interface {
	Name() string
	Kind() models.EvidenceKind
	Analyze(ctx context.Context, item *models.ContentItem) (models.Evidence, error)
}

// UnknownEvidence is the zero-confidence fallback recorded when a collector
// errors or times out.
func UnknownEvidence(name string, kind models.EvidenceKind) models.Evidence {
	return models.Evidence{
		Kind:       kind,
		Confidence: 0,
		Source:     name,
		Unknown:    true,
	}
}
