package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/pipeline"
)

func (s *Server) listHistory(c fiber.Ctx) error {
	return s.historyPage(c, c.Query("pipelineId"))
}

func (s *Server) listPipelineHistory(c fiber.Ctx) error {
	p, err := s.store.GetPipeline(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if p == nil {
		return notFound(c, "pipeline")
	}
	return s.historyPage(c, p.ID)
}

func (s *Server) historyPage(c fiber.Ctx, pipelineID string) error {
	limit, offset := pageParams(c)
	items, err := s.store.ListHistory(c.Context(), pipelineID, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	total, err := s.store.CountHistory(c.Context(), pipelineID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(Page[pipeline.History]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) getHistory(c fiber.Ctx) error {
	h, err := s.store.GetHistory(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if h == nil {
		return notFound(c, "history")
	}
	return c.JSON(h)
}
