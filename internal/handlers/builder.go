package handlers

import (
	"errors"
	"fmt"

	"github.com/Hampilk/trebujton-sub000/internal/autosave"
	"github.com/Hampilk/trebujton-sub000/internal/layout"
	"github.com/Hampilk/trebujton-sub000/internal/services"
	"github.com/Hampilk/trebujton-sub000/internal/store"
	"github.com/Hampilk/trebujton-sub000/internal/types"
	"github.com/Hampilk/trebujton-sub000/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// BuilderHandler hosts the builder editing session: the layout store holds the
// working copies, the autosave controller debounces writes. All routes are
// admin-gated.
type BuilderHandler struct {
	DB         *gorm.DB
	Store      *store.Store
	Controller *autosave.Controller
}

// Open handles POST /api/builder/:slug/open
// @Summary Open a builder session
// @Description Load the page's layout and theme overrides into the builder working copy
// @Tags Builder
// @Produce json
// @Param slug path string true "Page slug"
// @Success 200 {object} store.Status
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /builder/{slug}/open [post]
func (h *BuilderHandler) Open(c *fiber.Ctx) error {
	slug := c.Params("slug")

	if _, err := services.GetPageBySlug(h.DB, slug); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Page '%s' not found", slug))
		}
		h.Store.LoadFailed(slug, err.Error())
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "builder.open")
	}

	doc, err := services.LoadLayout(h.DB, slug)
	if err != nil {
		h.Store.LoadFailed(slug, err.Error())
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "builder.open")
	}

	overrides, err := services.GetThemeOverrides(h.DB, slug)
	if err != nil {
		h.Store.LoadFailed(slug, err.Error())
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "builder.open")
	}

	// A page without a layout opens as an empty document
	h.Store.LoadSucceeded(slug, doc, overrides)
	h.Store.SetCurrentPage(slug)

	return h.status(c, slug)
}

// UpdateInstances handles POST /api/builder/:slug/instances
// @Summary Update widget instances
// @Description Merge widget instances into the working copy and restart the autosave debounce
// @Tags Builder
// @Accept json
// @Produce json
// @Param slug path string true "Page slug"
// @Param body body map[string]layout.Widget true "Widget instances"
// @Success 200 {object} store.Status
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /builder/{slug}/instances [post]
func (h *BuilderHandler) UpdateInstances(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var body map[string]layout.Widget
	if err := c.BodyParser(&body); err != nil || len(body) == 0 {
		return utils.ValidationErrorResponse(c, "Invalid input")
	}
	for id, w := range body {
		if id == "" || w.Type == "" {
			return utils.ValidationErrorResponse(c, "Invalid input")
		}
		if err := layout.ValidateBag(w.Props); err != nil {
			return utils.ValidationErrorResponse(c, err.Error())
		}
	}

	h.Store.UpdateInstances(slug, body)
	h.Store.RecordEditor(slug, actingUserID(c))
	h.Controller.NotifyEdit(slug)
	return h.status(c, slug)
}

// UpdateGeometry handles POST /api/builder/:slug/layout
// @Summary Update grid geometry
// @Description Replace the grid geometry of the working copy; accepts a single item or an array
// @Tags Builder
// @Accept json
// @Produce json
// @Param slug path string true "Page slug"
// @Param body body object true "Grid item or array of grid items"
// @Success 200 {object} store.Status
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /builder/{slug}/layout [post]
func (h *BuilderHandler) UpdateGeometry(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var body types.FlexList[layout.GridItem]
	if err := c.BodyParser(&body); err != nil {
		return utils.ValidationErrorResponse(c, "Invalid input")
	}

	h.Store.UpdateGeometry(slug, body.Slice())
	h.Store.RecordEditor(slug, actingUserID(c))
	h.Controller.NotifyEdit(slug)
	return h.status(c, slug)
}

// UpdateTheme handles POST /api/builder/:slug/theme
// @Summary Update theme overrides in the working copy
// @Description Merge a partial theme-override bag into the working copy; persisted on the next save
// @Tags Builder
// @Accept json
// @Produce json
// @Param slug path string true "Page slug"
// @Param body body map[string]interface{} true "Partial overrides"
// @Success 200 {object} store.Status
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /builder/{slug}/theme [post]
func (h *BuilderHandler) UpdateTheme(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil || len(body) == 0 {
		return utils.ValidationErrorResponse(c, "Invalid input")
	}
	if err := layout.ValidateBag(body); err != nil {
		return utils.ValidationErrorResponse(c, err.Error())
	}

	h.Store.UpdateOverrides(slug, body)
	h.Store.RecordEditor(slug, actingUserID(c))
	h.Controller.NotifyEdit(slug)
	return h.status(c, slug)
}

// Save handles POST /api/builder/:slug/save
// @Summary Manual save
// @Description Save the working copy immediately; 204 when nothing is dirty, 409 while a save is in flight
// @Tags Builder
// @Produce json
// @Param slug path string true "Page slug"
// @Success 200 {object} store.Status
// @Success 204
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /builder/{slug}/save [post]
func (h *BuilderHandler) Save(c *fiber.Ctx) error {
	slug := c.Params("slug")

	err := h.Controller.SaveNow(slug)
	switch {
	case errors.Is(err, autosave.ErrNothingToSave):
		return c.SendStatus(fiber.StatusNoContent)
	case errors.Is(err, autosave.ErrSaveInFlight):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict, "builder.saveInFlight")
	case err != nil:
		// Dirty flag and error string stay on the store for retry
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "builder.save")
	}
	return h.status(c, slug)
}

// Status handles GET /api/builder/:slug/status
// @Summary Builder session status
// @Description Report the autosave state, dirty flag, last save time, and any errors
// @Tags Builder
// @Produce json
// @Param slug path string true "Page slug"
// @Success 200 {object} store.Status
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /builder/{slug}/status [get]
func (h *BuilderHandler) Status(c *fiber.Ctx) error {
	return h.status(c, c.Params("slug"))
}

// Close handles DELETE /api/builder/:slug
// @Summary Close a builder session
// @Description Flush a dirty working copy best-effort, then drop the session state
// @Tags Builder
// @Produce json
// @Param slug path string true "Page slug"
// @Success 204
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /builder/{slug} [delete]
func (h *BuilderHandler) Close(c *fiber.Ctx) error {
	slug := c.Params("slug")

	// Best-effort flush; a failure here still tears the session down and the
	// pending edit is dropped with it.
	if h.Store.IsDirty(slug) {
		_ = h.Controller.SaveNow(slug)
	}

	h.Controller.Cancel(slug)
	h.Store.Reset(slug)
	return c.SendStatus(fiber.StatusNoContent)
}

// status renders the combined store/controller view of one page session.
func (h *BuilderHandler) status(c *fiber.Ctx, slug string) error {
	st := h.Store.Status(slug)

	resp := fiber.Map{
		"pageId":    st.PageID,
		"state":     h.Controller.State(slug),
		"loaded":    st.Loaded,
		"dirty":     st.Dirty,
		"loadError": st.LoadError,
		"saveError": st.SaveError,
	}
	if !st.LastSavedAt.IsZero() {
		resp["lastSavedAt"] = st.LastSavedAt
	}
	if doc, ok := h.Store.Document(slug); ok {
		if report := doc.Analyze(); !report.Clean() {
			resp["orphans"] = report
		}
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
