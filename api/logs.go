package api

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/pipeline"
)

func (s *Server) listLogs(c fiber.Ctx) error {
	limit, offset := pageParams(c)
	items, err := s.store.ListLogs(c.Context(), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	total, err := s.store.CountLogs(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(Page[pipeline.LogEntry]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) getLog(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid log id"})
	}
	l, err := s.store.GetLog(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	if l == nil {
		return notFound(c, "log")
	}
	return c.JSON(l)
}

func (s *Server) deleteLog(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid log id"})
	}
	if err := s.store.DeleteLog(c.Context(), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
