package collectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-backend/models"
)

func TestClassifierAnalyze(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "c1", req.ContentID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(classifierResponse{
			Category:   models.ViolationViolent,
			Score:      88,
			Scores:     map[models.ViolationType]float64{models.ViolationViolent: 88, models.ViolationSpam: 3},
			Confidence: 95,
		})
	}))
	defer server.Close()

	c := NewClassifier(server.URL, time.Second)
	ev, err := c.Analyze(context.Background(), &models.ContentItem{ID: "c1", Type: models.ContentImage, Payload: []byte("img")})
	require.NoError(t, err)

	assert.Equal(t, "/classify", gotPath)
	assert.Equal(t, models.ViolationViolent, ev.Candidate)
	assert.Equal(t, 88.0, ev.Confidence)
	assert.Equal(t, "multimodal_classifier", ev.Source)
	assert.False(t, ev.Unknown)
}

func TestAgeVerifierAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ageResponse{
			EstimatedAge: 17,
			ApparentAge:  17,
			Confidence:   72,
			RiskLevel:    models.RiskHigh,
		})
	}))
	defer server.Close()

	a := NewAgeVerifier(server.URL, time.Second)
	ev, err := a.Analyze(context.Background(), &models.ContentItem{ID: "c1", Type: models.ContentImage})
	require.NoError(t, err)

	assert.Equal(t, models.ViolationUnderage, ev.Candidate)
	require.NotNil(t, ev.Age)
	assert.Equal(t, models.RiskHigh, ev.Age.RiskLevel)
	assert.Equal(t, 17.0, ev.Age.EstimatedAge)
}

func TestConsentAnalyzerDeniedParticipant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(consentResponse{RiskScore: 10, ConsentType: "explicit"})
	}))
	defer server.Close()

	c := NewConsentAnalyzer(server.URL, time.Second)
	ev, err := c.Analyze(context.Background(), &models.ContentItem{
		ID:   "c1",
		Type: models.ContentVideo,
		Participants: []models.Participant{
			{ID: "p1", Consent: models.ConsentVerified},
			{ID: "p2", Consent: models.ConsentDenied},
		},
	})
	require.NoError(t, err)

	// A denied participant maxes out the risk regardless of the remote
	// analyzer's score.
	assert.Equal(t, 100.0, ev.Confidence)
	assert.Equal(t, models.ViolationNonConsensual, ev.Candidate)
}

func TestCollectorNotConfigured(t *testing.T) {
	for _, c := range []Collector{
		NewClassifier("", time.Second),
		NewAgeVerifier("", time.Second),
		NewDeepfakeDetector("", time.Second),
		NewConsentAnalyzer("", time.Second),
		NewCopyrightMatcher("", time.Second),
		NewPIIScanner("", time.Second),
	} {
		_, err := c.Analyze(context.Background(), &models.ContentItem{ID: "c1"})
		assert.ErrorIs(t, err, ErrNotConfigured, c.Name())
	}
}

func TestCollectorDecodesWithoutJSONContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(`{"deepfake_score": 91}`))
	}))
	defer server.Close()

	d := NewDeepfakeDetector(server.URL, time.Second)
	ev, err := d.Analyze(context.Background(), &models.ContentItem{ID: "c1", Type: models.ContentVideo})
	require.NoError(t, err)
	assert.Equal(t, 91.0, ev.Confidence)
	assert.Equal(t, models.ViolationDeepfake, ev.Candidate)
}

func TestCollectorUnparseableBodyIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	// A 2xx that cannot be decoded must error so the pipeline treats the
	// collector as unknown, not as zero-confidence clean evidence.
	d := NewDeepfakeDetector(server.URL, time.Second)
	_, err := d.Analyze(context.Background(), &models.ContentItem{ID: "c1", Type: models.ContentVideo})
	assert.Error(t, err)
}

func TestCollectorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewDeepfakeDetector(server.URL, time.Second)
	_, err := d.Analyze(context.Background(), &models.ContentItem{ID: "c1"})
	assert.Error(t, err)
}

func TestCollectorHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	p := NewPIIScanner(server.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Analyze(ctx, &models.ContentItem{ID: "c1", Text: "text"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestUnknownEvidence(t *testing.T) {
	ev := UnknownEvidence("age_verifier", models.EvidenceBiometric)
	assert.True(t, ev.Unknown)
	assert.Equal(t, 0.0, ev.Confidence)
	assert.Equal(t, "age_verifier", ev.Source)
}
