package handlers

import (
	"errors"
	"fmt"

	"github.com/Hampilk/trebujton-sub000/internal/layout"
	"github.com/Hampilk/trebujton-sub000/internal/services"
	"github.com/Hampilk/trebujton-sub000/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// LayoutHandler handles layout document routes
type LayoutHandler struct {
	DB      *gorm.DB
	AdminDB *gorm.DB
}

// layoutSaveBody is the PUT payload: the document plus optional theme
// overrides written in the same transaction.
type layoutSaveBody struct {
	Instances      map[string]layout.Widget `json:"instances"`
	Layout         []layout.GridItem        `json:"layout"`
	ThemeOverrides map[string]interface{}   `json:"themeOverrides,omitempty"`
	Description    string                   `json:"description,omitempty"`
}

// GetLayout handles GET /api/pages/:slug/layout
// @Summary Get a page layout
// @Description Get the layout document for a page; 204 when the page has no layout yet
// @Tags Layouts
// @Produce json
// @Param slug path string true "Page slug"
// @Success 200 {object} layout.Document
// @Success 204
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages/{slug}/layout [get]
func (h *LayoutHandler) GetLayout(c *fiber.Ctx) error {
	slug := c.Params("slug")

	doc, err := services.LoadLayout(h.DB, slug)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getLayout")
	}
	if doc == nil {
		// Missing page or missing layout are both "nothing here yet"
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusOK).JSON(doc)
}

// PutLayout handles PUT /api/pages/:slug/layout
// @Summary Save a page layout
// @Description Upsert the layout document, last-writer-wins; optional theme overrides are written and audited in the same transaction
// @Tags Layouts
// @Accept json
// @Produce json
// @Param slug path string true "Page slug"
// @Param body body layoutSaveBody true "Layout document"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages/{slug}/layout [put]
func (h *LayoutHandler) PutLayout(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var body layoutSaveBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ValidationErrorResponse(c, "Invalid input")
	}

	doc := &layout.Document{Instances: body.Instances, Layout: body.Layout}
	if doc.Instances == nil {
		doc.Instances = map[string]layout.Widget{}
	}
	if doc.Layout == nil {
		doc.Layout = []layout.GridItem{}
	}

	savedAt, affectedRows, err := services.SaveLayout(h.AdminDB, slug, doc, body.ThemeOverrides, actingUserID(c), body.Description)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Page '%s' not found", slug))
		}
		return serviceErrorResponse(c, err, "putLayout")
	}

	return utils.MutationSuccessResponse(c, savedAt, affectedRows)
}
