package controllers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"sentinel-backend/services"
)

type LivestreamController struct {
	Coordinator *services.LivestreamCoordinator
	Log         *zap.SugaredLogger
}

func NewLivestreamController(coordinator *services.LivestreamCoordinator, log *zap.SugaredLogger) *LivestreamController {
	return &LivestreamController{Coordinator: coordinator, Log: log}
}

type windowRequest struct {
	Frame []byte   `json:"frame,omitempty"`
	Audio []byte   `json:"audio,omitempty"`
	Chat  []string `json:"chat,omitempty"`
}

func (lc *LivestreamController) SubmitWindow(c *fiber.Ctx) error {
	streamID := c.Params("streamID")
	var req windowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid window body: " + err.Error())
	}

	result, err := lc.Coordinator.SubmitWindow(c.UserContext(), streamID, req.Frame, req.Audio, req.Chat)
	if err != nil {
		lc.Log.Errorw("[Livestream] window analysis failed", "stream_id", streamID, "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("window analysis failed")
	}
	return c.JSON(result)
}

func (lc *LivestreamController) EndStream(c *fiber.Ctx) error {
	streamID := c.Params("streamID")
	lc.Coordinator.EndStream(streamID)
	lc.Log.Infow("[Livestream] stream ended", "stream_id", streamID)
	return c.SendStatus(fiber.StatusNoContent)
}
