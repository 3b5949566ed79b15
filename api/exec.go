package api

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/meikuraledutech/pipeline"
)

// exec runs the pipeline registered for the request method and the path after /exec/.
// The JSON body becomes the BeginRequest data; an empty body is null.
func (s *Server) exec(c fiber.Ctx) error {
	var payload any
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body is not valid JSON"})
		}
	}

	out, err := s.runner.Exec(c.Context(), c.Method(), c.Params("*"), payload)
	if errors.Is(err, pipeline.ErrPipelineNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		s.logger.Warn("pipeline run failed",
			zap.String("path", c.Path()),
			zap.String("history", out.HistoryID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     err.Error(),
			"historyId": out.HistoryID,
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(out.Result)
}
