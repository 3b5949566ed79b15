package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/pipeline"
)

// statusOf maps store errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrNodeNotFound),
		errors.Is(err, pipeline.ErrPipelineNotFound),
		errors.Is(err, pipeline.ErrHistoryNotFound),
		errors.Is(err, pipeline.ErrLogNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, pipeline.ErrRouteConflict),
		errors.Is(err, pipeline.ErrNodeReadOnly):
		return fiber.StatusConflict
	case errors.Is(err, pipeline.ErrCycleDetected),
		errors.Is(err, pipeline.ErrInvalidGraph),
		errors.Is(err, pipeline.ErrInvalidPipeline):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c fiber.Ctx, err error) error {
	return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
}

func notFound(c fiber.Ctx, what string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": what + " not found"})
}

func invalidBody(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
}
