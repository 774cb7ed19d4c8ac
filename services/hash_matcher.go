package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"sentinel-backend/models"
)

// HashStore is the violation-fingerprint database contract: append-only
// writes, concurrent-safe lookups.
type HashStore interface {
	Lookup(ctx context.Context, fingerprint string) (models.ViolationType, bool, error)
	Record(ctx context.Context, fingerprint string, vtype models.ViolationType) error
}

// Match is the fast-path outcome. Degraded means the store was unreachable:
// the pipeline proceeds as "no match" but must not auto-approve.
type Match struct {
	Known       bool
	Type        models.ViolationType
	Fingerprint string
	Degraded    bool
}

type HashMatcher struct {
	store HashStore
	log   *zap.SugaredLogger
}

func NewHashMatcher(store HashStore, log *zap.SugaredLogger) *HashMatcher {
	return &HashMatcher{store: store, log: log}
}

// Fingerprint hashes the content payload (or text for text-only items). The
// same bytes always produce the same fingerprint.
func Fingerprint(item *models.ContentItem) string {
	h := sha256.New()
	if len(item.Payload) > 0 {
		h.Write(item.Payload)
	} else {
		h.Write([]byte(item.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Check looks the content fingerprint up against confirmed violations. Store
// failure fails open on the fast path: no match, but the item is marked
// degraded so it cannot be silently approved downstream.
func (m *HashMatcher) Check(ctx context.Context, item *models.ContentItem) Match {
	fp := Fingerprint(item)
	vtype, known, err := m.store.Lookup(ctx, fp)
	if err != nil {
		m.log.Warnw("[HashMatcher] store unavailable, treating as no match", "content_id", item.ID, "error", err)
		return Match{Fingerprint: fp, Degraded: true}
	}
	return Match{Known: known, Type: vtype, Fingerprint: fp}
}
