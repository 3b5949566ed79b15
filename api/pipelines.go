package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/pipeline"
)

func (s *Server) listPipelines(c fiber.Ctx) error {
	limit, offset := pageParams(c)
	items, err := s.store.ListPipelines(c.Context(), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	total, err := s.store.CountPipelines(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(Page[pipeline.Pipeline]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) createPipeline(c fiber.Ctx) error {
	var p pipeline.Pipeline
	if err := c.Bind().JSON(&p); err != nil {
		return invalidBody(c)
	}
	created, err := s.store.CreatePipeline(c.Context(), &p)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) getPipeline(c fiber.Ctx) error {
	p, err := s.store.GetPipeline(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if p == nil {
		return notFound(c, "pipeline")
	}
	return c.JSON(p)
}

func (s *Server) updatePipeline(c fiber.Ctx) error {
	var p pipeline.Pipeline
	if err := c.Bind().JSON(&p); err != nil {
		return invalidBody(c)
	}
	p.ID = c.Params("id")
	if err := s.store.UpdatePipeline(c.Context(), &p); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) deletePipeline(c fiber.Ctx) error {
	if err := s.store.DeletePipeline(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
