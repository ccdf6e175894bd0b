package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/Hampilk/trebujton-sub000/internal/services"
	"github.com/Hampilk/trebujton-sub000/internal/types"
	"github.com/Hampilk/trebujton-sub000/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PageHandler handles page CRUD routes
type PageHandler struct {
	DB      *gorm.DB
	AdminDB *gorm.DB
}

// ListPages handles GET /api/pages
// @Summary List pages
// @Description List pages; callers without an admin session only see published pages
// @Tags Pages
// @Produce json
// @Param all query bool false "Include unpublished pages (admin only)"
// @Success 200 {array} map[string]interface{}
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages [get]
func (h *PageHandler) ListPages(c *fiber.Ctx) error {
	publishedOnly := !(c.QueryBool("all", false) && c.Locals("user") != nil)

	pages, err := services.ListPages(h.DB, publishedOnly)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listPages")
	}

	out := make([]fiber.Map, 0, len(pages))
	for _, p := range pages {
		out = append(out, fiber.Map{
			"slug":        p.Slug,
			"title":       p.Title,
			"isPublished": p.IsPublished,
			"createdAt":   p.CreatedAt.UTC().Format(time.RFC3339),
			"updatedAt":   p.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

// GetPage handles GET /api/pages/:slug
// @Summary Get a page
// @Description Get a page record by slug, including its theme overrides
// @Tags Pages
// @Produce json
// @Param slug path string true "Page slug"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages/{slug} [get]
func (h *PageHandler) GetPage(c *fiber.Ctx) error {
	slug := c.Params("slug")

	page, err := services.GetPageBySlug(h.DB, slug)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Page '%s' not found", slug))
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getPage")
	}

	overrides, err := services.GetThemeOverrides(h.DB, slug)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getPage")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"slug":           page.Slug,
		"title":          page.Title,
		"isPublished":    page.IsPublished,
		"themeOverrides": overrides,
		"createdAt":      page.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":      page.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// CreatePages handles POST /api/pages
// @Summary Create pages
// @Description Create one page or a batch; the body accepts a single page object or an array
// @Tags Pages
// @Accept json
// @Produce json
// @Param body body object true "Page or array of pages"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages [post]
func (h *PageHandler) CreatePages(c *fiber.Ctx) error {
	var body types.FlexList[services.PageInput]
	if err := c.BodyParser(&body); err != nil {
		return utils.ValidationErrorResponse(c, "Invalid input")
	}
	inputs := body.Slice()
	if len(inputs) == 0 {
		return utils.ValidationErrorResponse(c, "Invalid input")
	}

	userID := actingUserID(c)
	created := make([]string, 0, len(inputs))
	for _, in := range inputs {
		page, err := services.CreatePage(h.AdminDB, in, userID)
		if err != nil {
			return serviceErrorResponse(c, err, "createPages")
		}
		created = append(created, page.Slug)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":   "Success",
		"ok":        true,
		"created":   created,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// UpdatePage handles PATCH /api/pages/:slug
// @Summary Update a page
// @Description Update a page's title and/or published flag
// @Tags Pages
// @Accept json
// @Produce json
// @Param slug path string true "Page slug"
// @Param body body services.PageUpdate true "Fields to update"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages/{slug} [patch]
func (h *PageHandler) UpdatePage(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var body services.PageUpdate
	if err := c.BodyParser(&body); err != nil {
		return utils.ValidationErrorResponse(c, "Invalid input")
	}

	page, err := services.UpdatePage(h.AdminDB, slug, body, actingUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Page '%s' not found", slug))
		}
		return serviceErrorResponse(c, err, "updatePage")
	}

	return utils.MutationSuccessResponse(c, page.UpdatedAt, 1)
}

// DeletePage handles DELETE /api/pages/:slug
// @Summary Delete a page
// @Description Delete a page, cascading its layout and theme-override audit history
// @Tags Pages
// @Produce json
// @Param slug path string true "Page slug"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages/{slug} [delete]
func (h *PageHandler) DeletePage(c *fiber.Ctx) error {
	slug := c.Params("slug")

	affectedRows, err := services.DeletePage(h.AdminDB, slug)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Page '%s' not found", slug))
		}
		return serviceErrorResponse(c, err, "deletePage")
	}

	return utils.MutationSuccessResponse(c, time.Now().UTC(), affectedRows)
}
