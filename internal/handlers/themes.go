package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Hampilk/trebujton-sub000/internal/services"
	"github.com/Hampilk/trebujton-sub000/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ThemeHandler handles theme override routes
type ThemeHandler struct {
	DB      *gorm.DB
	AdminDB *gorm.DB
}

// themeMergeBody is the PATCH payload: a partial override bag plus a
// free-text description recorded on the audit entry.
type themeMergeBody struct {
	Overrides   map[string]interface{} `json:"overrides"`
	Description string                 `json:"description,omitempty"`
}

// GetTheme handles GET /api/pages/:slug/theme
// @Summary Get theme overrides
// @Description Get the current theme-override bag for a page
// @Tags Themes
// @Produce json
// @Param slug path string true "Page slug"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages/{slug}/theme [get]
func (h *ThemeHandler) GetTheme(c *fiber.Ctx) error {
	slug := c.Params("slug")

	overrides, err := services.GetThemeOverrides(h.DB, slug)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Page '%s' not found", slug))
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getTheme")
	}

	return c.Status(fiber.StatusOK).JSON(overrides)
}

// MergeTheme handles PATCH /api/pages/:slug/theme
// @Summary Merge theme overrides
// @Description Shallow-merge a partial override bag over the current one and append an audit entry
// @Tags Themes
// @Accept json
// @Produce json
// @Param slug path string true "Page slug"
// @Param body body themeMergeBody true "Partial overrides"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages/{slug}/theme [patch]
func (h *ThemeHandler) MergeTheme(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var body themeMergeBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ValidationErrorResponse(c, "Invalid input")
	}
	if body.Overrides == nil {
		return utils.ValidationErrorResponse(c, "Invalid input")
	}

	merged, err := services.MergeThemeOverrides(h.AdminDB, slug, body.Overrides, actingUserID(c), body.Description)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Page '%s' not found", slug))
		}
		return serviceErrorResponse(c, err, "mergeTheme")
	}

	return c.Status(fiber.StatusOK).JSON(merged)
}

// ListAudit handles GET /api/pages/:slug/theme/audit
// @Summary List theme-override audit entries
// @Description List theme-override audit entries for a page, newest first
// @Tags Themes
// @Produce json
// @Param slug path string true "Page slug"
// @Param limit query int false "Maximum number of entries"
// @Success 200 {array} map[string]interface{}
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /pages/{slug}/theme/audit [get]
func (h *ThemeHandler) ListAudit(c *fiber.Ctx) error {
	slug := c.Params("slug")
	limit := c.QueryInt("limit", 50)

	entries, err := services.ListThemeAudit(h.DB, slug, limit)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Page '%s' not found", slug))
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listThemeAudit")
	}

	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		var oldOverrides, newOverrides map[string]interface{}
		_ = json.Unmarshal(e.OldOverrides.JSON, &oldOverrides)
		_ = json.Unmarshal(e.NewOverrides.JSON, &newOverrides)
		out = append(out, fiber.Map{
			"userId":      e.UserID,
			"old":         oldOverrides,
			"new":         newOverrides,
			"description": e.ChangeDescription,
			"createdAt":   e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.Status(fiber.StatusOK).JSON(out)
}
