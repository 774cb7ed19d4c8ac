package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"sentinel-backend/models"
	"sentinel-backend/services"
)

type ModerationController struct {
	Pipeline *services.Pipeline
	Results  services.ResultStore
	Log      *zap.SugaredLogger
}

func NewModerationController(pipeline *services.Pipeline, results services.ResultStore, log *zap.SugaredLogger) *ModerationController {
	return &ModerationController{Pipeline: pipeline, Results: results, Log: log}
}

type submitRequest struct {
	ContentID    string               `json:"content_id"`
	Type         models.ContentType   `json:"type"`
	Payload      []byte               `json:"payload,omitempty"`
	PayloadRef   string               `json:"payload_ref,omitempty"`
	Text         string               `json:"text,omitempty"`
	OwnerID      string               `json:"owner_id"`
	SubmitterID  string               `json:"submitter_id"`
	Participants []models.Participant `json:"participants,omitempty"`
	Location     *models.Geolocation  `json:"location,omitempty"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
}

// submitterView hides evidence and confidence breakdowns from submitters so
// the response cannot be used to probe the classifiers.
type submitterView struct {
	ID                  string                  `json:"id"`
	ContentID           string                  `json:"content_id"`
	Status              models.ModerationStatus `json:"status"`
	HumanReviewRequired bool                    `json:"human_review_required"`
	Reason              string                  `json:"reason,omitempty"`
}

func toSubmitterView(result *models.ModerationResult) submitterView {
	return submitterView{
		ID:                  result.ID,
		ContentID:           result.ContentID,
		Status:              result.Status,
		HumanReviewRequired: result.HumanReviewRequired,
		Reason:              models.GenericReason(result.Status, result.Violations),
	}
}

func (mc *ModerationController) Submit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		mc.Log.Warnw("[Moderate] bad request body", "error", err)
		return c.Status(fiber.StatusBadRequest).SendString("invalid request body: " + err.Error())
	}
	if req.Type == "" {
		return c.Status(fiber.StatusBadRequest).SendString("content type is required")
	}
	if len(req.Payload) == 0 && req.Text == "" && req.PayloadRef == "" {
		return c.Status(fiber.StatusBadRequest).SendString("payload, payload_ref, or text is required")
	}

	item := &models.ContentItem{
		ID:           req.ContentID,
		Type:         req.Type,
		Payload:      req.Payload,
		PayloadRef:   req.PayloadRef,
		Text:         req.Text,
		OwnerID:      req.OwnerID,
		SubmitterID:  req.SubmitterID,
		Participants: req.Participants,
		Location:     req.Location,
		Metadata:     req.Metadata,
		SubmittedAt:  time.Now().UTC(),
	}

	result, err := mc.Pipeline.Submit(c.UserContext(), item)
	if err != nil {
		mc.Log.Errorw("[Moderate] pipeline failed", "content_id", item.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("moderation failed")
	}

	return c.JSON(toSubmitterView(result))
}

func (mc *ModerationController) GetResult(c *fiber.Ctx) error {
	id := c.Params("id")
	result, err := mc.Results.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("result not found")
		}
		mc.Log.Errorw("[Moderate] result lookup failed", "result_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("lookup failed")
	}

	// full=1 is the reviewer view with evidence and confidence breakdowns.
	if c.Query("full") == "1" {
		return c.JSON(result)
	}
	return c.JSON(toSubmitterView(result))
}
