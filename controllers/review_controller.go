package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"sentinel-backend/models"
	"sentinel-backend/services"
)

type ReviewController struct {
	Reviews *services.ReviewService
	Log     *zap.SugaredLogger
}

func NewReviewController(reviews *services.ReviewService, log *zap.SugaredLogger) *ReviewController {
	return &ReviewController{Reviews: reviews, Log: log}
}

type dequeueRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

func (rc *ReviewController) Dequeue(c *fiber.Ctx) error {
	var req dequeueRequest
	if err := c.BodyParser(&req); err != nil || req.ReviewerID == "" {
		return c.Status(fiber.StatusBadRequest).SendString("reviewer_id is required")
	}

	entry, err := rc.Reviews.Dequeue(c.UserContext(), req.ReviewerID)
	if err != nil {
		if errors.Is(err, services.ErrNoEntries) {
			return c.Status(fiber.StatusNoContent).Send(nil)
		}
		rc.Log.Errorw("[Review] dequeue failed", "reviewer", req.ReviewerID, "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("dequeue failed")
	}
	return c.JSON(entry)
}

type resolveRequest struct {
	ReviewerID string                `json:"reviewer_id"`
	Decision   models.ReviewDecision `json:"decision"`
	Notes      string                `json:"notes"`
}

func (rc *ReviewController) Resolve(c *fiber.Ctx) error {
	entryID := c.Params("entryID")
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil || req.ReviewerID == "" || req.Decision == "" {
		return c.Status(fiber.StatusBadRequest).SendString("reviewer_id and decision are required")
	}

	result, err := rc.Reviews.Resolve(c.UserContext(), entryID, req.ReviewerID, req.Decision, req.Notes)
	switch {
	case err == nil:
		if result == nil {
			return c.JSON(fiber.Map{"entry_id": entryID, "escalated": true})
		}
		return c.JSON(result)
	case errors.Is(err, services.ErrEntryNotFound):
		return c.Status(fiber.StatusNotFound).SendString("entry not found")
	case errors.Is(err, services.ErrLeaseConflict):
		return c.Status(fiber.StatusConflict).SendString("entry leased by another reviewer")
	case errors.Is(err, services.ErrAlreadyResolved):
		return c.Status(fiber.StatusConflict).SendString("result already amended")
	default:
		rc.Log.Errorw("[Review] resolve failed", "entry_id", entryID, "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("resolve failed")
	}
}

func (rc *ReviewController) Metrics(c *fiber.Ctx) error {
	snap, err := rc.Reviews.Metrics(c.UserContext())
	if err != nil {
		rc.Log.Errorw("[Review] metrics failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("metrics unavailable")
	}
	return c.JSON(snap)
}
