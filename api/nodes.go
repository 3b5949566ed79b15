package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/pipeline"
)

func (s *Server) listNodes(c fiber.Ctx) error {
	limit, offset := pageParams(c)
	nodes, err := s.store.ListNodes(c.Context(), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	total, err := s.store.CountNodes(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(Page[pipeline.NodeDefinition]{Items: nodes, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) createNode(c fiber.Ctx) error {
	var node pipeline.NodeDefinition
	if err := c.Bind().JSON(&node); err != nil {
		return invalidBody(c)
	}
	if node.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	created, err := s.store.CreateNode(c.Context(), &node)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) getNode(c fiber.Ctx) error {
	n, err := s.store.GetNode(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if n == nil {
		return notFound(c, "node")
	}
	return c.JSON(n)
}

func (s *Server) updateNode(c fiber.Ctx) error {
	var node pipeline.NodeDefinition
	if err := c.Bind().JSON(&node); err != nil {
		return invalidBody(c)
	}
	node.ID = c.Params("id")
	if err := s.store.UpdateNode(c.Context(), &node); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) deleteNode(c fiber.Ctx) error {
	if err := s.store.DeleteNode(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
