package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/pages"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/utils"
)

// CatalogHandler serves the read-only storefront pages.
type CatalogHandler struct {
	pages *pages.Service
	dev   bool
}

// NewCatalogHandler constructs CatalogHandler. dev exposes raw descriptors of unsupported
// homepage components.
func NewCatalogHandler(svc *pages.Service, dev bool) *CatalogHandler {
	return &CatalogHandler{pages: svc, dev: dev}
}

func (h *CatalogHandler) Homepage(c *fiber.Ctx) error {
	page, err := h.pages.Homepage(c.UserContext(), h.dev)
	if err != nil {
		return err
	}
	return respond(c, page)
}

func (h *CatalogHandler) Store(c *fiber.Ctx) error {
	st, err := h.pages.Store(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, st)
}

// ListProducts returns a page of the catalog with optional search, category and sort.
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	catalog, err := h.pages.Products(c.UserContext(), sdk.ListQuery{
		Page:     pg.Page,
		PerPage:  pg.PerPage,
		Search:   strings.TrimSpace(c.Query("search")),
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       catalog.Products,
		"pagination": catalog.Pagination,
	})
}

// GetProduct returns the product page, marking wishlist membership for the session.
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	view, err := h.pages.ProductPage(c.UserContext(), c.Params("slug"), sess.Wishlist.Contains)
	if err != nil {
		return err
	}
	return respond(c, view)
}

func (h *CatalogHandler) ProductReviews(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	view, err := h.pages.ProductReviews(c.UserContext(), sdk.ID(c.Params("id")), pg.Page)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       view.Reviews,
		"pagination": view.Pagination,
	})
}

func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.pages.Categories(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, categories)
}

func (h *CatalogHandler) GetCategory(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	view, err := h.pages.Category(c.UserContext(), c.Params("slug"), sdk.ListQuery{
		Page:    pg.Page,
		PerPage: pg.PerPage,
		Sort:    c.Query("sort"),
	})
	if err != nil {
		return err
	}
	return respond(c, view)
}

// GetCourse returns the course player view of a purchased course.
func (h *CatalogHandler) GetCourse(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	course, err := pages.Course(c.UserContext(), sess.Client, sess.Auth.IsAuthenticated(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, course)
}
