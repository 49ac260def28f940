package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const maxPerPage = 100

// Pagination holds the page query of a listing request.
type Pagination struct {
	Page    int
	PerPage int
}

// ParsePagination reads page and per_page (or limit) with sane defaults.
func ParsePagination(c *fiber.Ctx) Pagination {
	page := parseInt(c.Query("page", "1"), 1)
	perPage := parseInt(c.Query("per_page", c.Query("limit", "20")), 20)
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return Pagination{Page: page, PerPage: perPage}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}
