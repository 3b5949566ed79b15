package api

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Page is the envelope of every list response.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// pageParams reads ?limit= and ?offset=. Bad or missing values fall back to the defaults.
func pageParams(c fiber.Ctx) (limit, offset int) {
	limit, offset = defaultLimit, 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = min(v, maxLimit)
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
