package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"sentinel-backend/models"
)

// analyzeRequest is the JSON body every classifier service receives. Payload
// is base64 on the wire.
type analyzeRequest struct {
	ContentID    string               `json:"content_id"`
	ContentType  models.ContentType   `json:"content_type"`
	Payload      []byte               `json:"payload,omitempty"`
	PayloadRef   string               `json:"payload_ref,omitempty"`
	Text         string               `json:"text,omitempty"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
	Participants []models.Participant `json:"participants,omitempty"`
}

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
}

func post(ctx context.Context, client *resty.Client, endpoint string, item *models.ContentItem, out any) error {
	req := analyzeRequest{
		ContentID:    item.ID,
		ContentType:  item.Type,
		Payload:      item.Payload,
		PayloadRef:   item.PayloadRef,
		Text:         item.Text,
		Metadata:     item.Metadata,
		Participants: item.Participants,
	}
	resp, err := client.R().
		SetContext(ctx).
		SetBody(req).
		Post(endpoint)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("collector status %d: %s", resp.StatusCode(), resp.String())
	}
	// Decode the body ourselves regardless of the response content type. A
	// 2xx with an unparseable body must surface as an error, never as a
	// zero-valued response that reads as clean evidence.
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("collector response decode: %w", err)
	}
	return nil
}

// Classifier calls the multi-modal content classification service. The
// service scores every category; the top category becomes the evidence
// candidate and the full score map rides along in the payload.
type Classifier struct {
	client *resty.Client
}

func NewClassifier(baseURL string, timeout time.Duration) *Classifier {
	if baseURL == "" {
		return &Classifier{}
	}
	return &Classifier{client: newClient(baseURL, timeout)}
}

func (c *Classifier) Name() string              { return "multimodal_classifier" }
func (c *Classifier) Kind() models.EvidenceKind { return models.EvidenceAIDetection }

type classifierResponse struct {
	Category   models.ViolationType             `json:"category"`
	Score      float64                          `json:"score"`
	Scores     map[models.ViolationType]float64 `json:"scores"`
	Confidence float64                          `json:"confidence"`
}

func (c *Classifier) Analyze(ctx context.Context, item *models.ContentItem) (models.Evidence, error) {
	if c.client == nil {
		return models.Evidence{}, ErrNotConfigured
	}
	var out classifierResponse
	if err := post(ctx, c.client, "/classify", item, &out); err != nil {
		return models.Evidence{}, err
	}
	payload := map[string]any{"confidence": out.Confidence}
	for t, s := range out.Scores {
		payload["score_"+string(t)] = s
	}
	return models.Evidence{
		Kind:       c.Kind(),
		Candidate:  out.Category,
		Confidence: out.Score,
		Source:     c.Name(),
		Payload:    payload,
	}, nil
}

// AgeVerifier combines facial apparent-age estimation with optional document
// verification and biometric match into a single risk tier.
type AgeVerifier struct {
	client *resty.Client
}

func NewAgeVerifier(baseURL string, timeout time.Duration) *AgeVerifier {
	if baseURL == "" {
		return &AgeVerifier{}
	}
	return &AgeVerifier{client: newClient(baseURL, timeout)}
}

func (a *AgeVerifier) Name() string              { return "age_verifier" }
func (a *AgeVerifier) Kind() models.EvidenceKind { return models.EvidenceBiometric }

type ageResponse struct {
	EstimatedAge     float64          `json:"estimated_age"`
	ApparentAge      float64          `json:"apparent_age"`
	Confidence       float64          `json:"confidence"`
	DocumentProvided bool             `json:"document_provided"`
	DocumentValid    bool             `json:"document_valid"`
	BiometricMatch   bool             `json:"biometric_match"`
	RiskLevel        models.RiskLevel `json:"risk_level"`
}

func (a *AgeVerifier) Analyze(ctx context.Context, item *models.ContentItem) (models.Evidence, error) {
	if a.client == nil {
		return models.Evidence{}, ErrNotConfigured
	}
	var out ageResponse
	if err := post(ctx, a.client, "/verify-age", item, &out); err != nil {
		return models.Evidence{}, err
	}
	return models.Evidence{
		Kind:       a.Kind(),
		Candidate:  models.ViolationUnderage,
		Confidence: out.Confidence,
		Source:     a.Name(),
		Age: &models.AgeVerification{
			EstimatedAge:     out.EstimatedAge,
			Confidence:       out.Confidence,
			ApparentAge:      out.ApparentAge,
			DocumentProvided: out.DocumentProvided,
			DocumentValid:    out.DocumentValid,
			BiometricMatch:   out.BiometricMatch,
			RiskLevel:        out.RiskLevel,
		},
	}, nil
}

// DeepfakeDetector scores how likely the media is synthetic or manipulated.
type DeepfakeDetector struct {
	client *resty.Client
}

func NewDeepfakeDetector(baseURL string, timeout time.Duration) *DeepfakeDetector {
	if baseURL == "" {
		return &DeepfakeDetector{}
	}
	return &DeepfakeDetector{client: newClient(baseURL, timeout)}
}

func (d *DeepfakeDetector) Name() string              { return "deepfake_detector" }
func (d *DeepfakeDetector) Kind() models.EvidenceKind { return models.EvidenceAIDetection }

type deepfakeResponse struct {
	DeepfakeScore float64  `json:"deepfake_score"`
	Techniques    []string `json:"techniques"`
}

func (d *DeepfakeDetector) Analyze(ctx context.Context, item *models.ContentItem) (models.Evidence, error) {
	if d.client == nil {
		return models.Evidence{}, ErrNotConfigured
	}
	var out deepfakeResponse
	if err := post(ctx, d.client, "/detect", item, &out); err != nil {
		return models.Evidence{}, err
	}
	return models.Evidence{
		Kind:       d.Kind(),
		Candidate:  models.ViolationDeepfake,
		Confidence: out.DeepfakeScore,
		Source:     d.Name(),
		Payload:    map[string]any{"techniques": out.Techniques},
	}, nil
}

// ConsentAnalyzer checks participant consent and non-consensual markers.
type ConsentAnalyzer struct {
	client *resty.Client
}

func NewConsentAnalyzer(baseURL string, timeout time.Duration) *ConsentAnalyzer {
	if baseURL == "" {
		return &ConsentAnalyzer{}
	}
	return &ConsentAnalyzer{client: newClient(baseURL, timeout)}
}

func (c *ConsentAnalyzer) Name() string              { return "consent_analyzer" }
func (c *ConsentAnalyzer) Kind() models.EvidenceKind { return models.EvidenceMetadata }

type consentResponse struct {
	RiskScore   float64  `json:"risk_score"`
	ConsentType string   `json:"consent_type"`
	RiskFactors []string `json:"risk_factors"`
}

func (c *ConsentAnalyzer) Analyze(ctx context.Context, item *models.ContentItem) (models.Evidence, error) {
	if c.client == nil {
		return models.Evidence{}, ErrNotConfigured
	}
	// A participant with denied consent is a finding on its own; the remote
	// analyzer still runs for revenge-porn and non-consensual markers.
	var out consentResponse
	if err := post(ctx, c.client, "/analyze-consent", item, &out); err != nil {
		return models.Evidence{}, err
	}
	score := out.RiskScore
	for _, p := range item.Participants {
		if p.Consent == models.ConsentDenied && score < 100 {
			score = 100
			out.RiskFactors = append(out.RiskFactors, "participant_denied_consent")
		}
	}
	return models.Evidence{
		Kind:       c.Kind(),
		Candidate:  models.ViolationNonConsensual,
		Confidence: score,
		Source:     c.Name(),
		Payload:    map[string]any{"consent_type": out.ConsentType, "risk_factors": out.RiskFactors},
	}, nil
}

// CopyrightMatcher queries the perceptual-hash copyright database.
type CopyrightMatcher struct {
	client *resty.Client
}

func NewCopyrightMatcher(baseURL string, timeout time.Duration) *CopyrightMatcher {
	if baseURL == "" {
		return &CopyrightMatcher{}
	}
	return &CopyrightMatcher{client: newClient(baseURL, timeout)}
}

func (c *CopyrightMatcher) Name() string              { return "copyright_matcher" }
func (c *CopyrightMatcher) Kind() models.EvidenceKind { return models.EvidenceHashMatch }

type copyrightResponse struct {
	MaxSimilarity float64  `json:"max_similarity"`
	Matches       []string `json:"matches"`
}

func (c *CopyrightMatcher) Analyze(ctx context.Context, item *models.ContentItem) (models.Evidence, error) {
	if c.client == nil {
		return models.Evidence{}, ErrNotConfigured
	}
	var out copyrightResponse
	if err := post(ctx, c.client, "/match", item, &out); err != nil {
		return models.Evidence{}, err
	}
	return models.Evidence{
		Kind:       c.Kind(),
		Candidate:  models.ViolationCopyright,
		Confidence: out.MaxSimilarity,
		Source:     c.Name(),
		Payload:    map[string]any{"matches": out.Matches},
	}, nil
}

// PIIScanner detects exposed personal information (OCR on media, NER on
// text). Findings count toward harassment since published PII is treated as
// doxxing material.
type PIIScanner struct {
	client *resty.Client
}

func NewPIIScanner(baseURL string, timeout time.Duration) *PIIScanner {
	if baseURL == "" {
		return &PIIScanner{}
	}
	return &PIIScanner{client: newClient(baseURL, timeout)}
}

func (p *PIIScanner) Name() string              { return "pii_scanner" }
func (p *PIIScanner) Kind() models.EvidenceKind { return models.EvidenceMetadata }

type piiResponse struct {
	Score       float64  `json:"score"`
	PIITypes    []string `json:"pii_types"`
	Sensitivity string   `json:"sensitivity"`
}

func (p *PIIScanner) Analyze(ctx context.Context, item *models.ContentItem) (models.Evidence, error) {
	if p.client == nil {
		return models.Evidence{}, ErrNotConfigured
	}
	var out piiResponse
	if err := post(ctx, p.client, "/scan", item, &out); err != nil {
		return models.Evidence{}, err
	}
	return models.Evidence{
		Kind:       p.Kind(),
		Candidate:  models.ViolationHarassment,
		Confidence: out.Score,
		Source:     p.Name(),
		Payload:    map[string]any{"pii_types": out.PIITypes, "sensitivity": out.Sensitivity},
	}, nil
}
