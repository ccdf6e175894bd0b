package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Hampilk/trebujton-sub000/internal/handlers"
	"github.com/Hampilk/trebujton-sub000/internal/middleware"
	"github.com/Hampilk/trebujton-sub000/internal/models"
	"github.com/Hampilk/trebujton-sub000/tests/helpers"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Page{},
		&models.PageLayout{},
		&models.ThemeOverrideAudit{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// setupApp mounts the page, layout, and theme routes without the auth
// middleware, the way the admin routes behave for an authenticated session.
func setupApp(db *gorm.DB) *fiber.App {
	app := fiber.New()

	pageHandler := &handlers.PageHandler{DB: db, AdminDB: db}
	layoutHandler := &handlers.LayoutHandler{DB: db, AdminDB: db}
	themeHandler := &handlers.ThemeHandler{DB: db, AdminDB: db}

	app.Get("/api/pages", pageHandler.ListPages)
	app.Post("/api/pages", pageHandler.CreatePages)
	app.Get("/api/pages/:slug", pageHandler.GetPage)
	app.Patch("/api/pages/:slug", pageHandler.UpdatePage)
	app.Delete("/api/pages/:slug", pageHandler.DeletePage)
	app.Get("/api/pages/:slug/layout", layoutHandler.GetLayout)
	app.Put("/api/pages/:slug/layout", layoutHandler.PutLayout)
	app.Get("/api/pages/:slug/theme", themeHandler.GetTheme)
	app.Patch("/api/pages/:slug/theme", themeHandler.MergeTheme)
	app.Get("/api/pages/:slug/theme/audit", themeHandler.ListAudit)

	return app
}

// doJSON executes one request against the app, JSON-encoding the body when
// present.
func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	return resp
}

func TestGetPageNotFoundEnvelope(t *testing.T) {
	app := setupApp(setupTestDB(t))

	resp := doJSON(t, app, "GET", "/api/pages/missing", nil)
	helpers.AssertStatus(t, resp, 404)

	var envelope map[string]interface{}
	helpers.ParseJSON(t, resp, &envelope)
	if envelope["ok"] != false {
		t.Errorf("Expected ok=false in error envelope, got %+v", envelope)
	}
	if envelope["status"] != float64(404) {
		t.Errorf("Expected status 404 in envelope, got %v", envelope["status"])
	}
}

func TestCreatePagesSingleAndBatch(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(db)

	// Single object body
	resp := doJSON(t, app, "POST", "/api/pages", map[string]interface{}{
		"slug":  "home",
		"title": "Home",
	})
	helpers.AssertStatus(t, resp, 200)

	var result map[string]interface{}
	helpers.ParseJSON(t, resp, &result)
	if result["ok"] != true {
		t.Errorf("Expected ok=true, got %+v", result)
	}

	// Array body
	resp = doJSON(t, app, "POST", "/api/pages", []map[string]interface{}{
		{"slug": "fixtures", "title": "Fixtures", "isPublished": true},
		{"slug": "standings", "title": "Standings", "isPublished": true},
	})
	helpers.AssertStatus(t, resp, 200)

	resp = doJSON(t, app, "GET", "/api/pages?all=true", nil)
	helpers.AssertStatus(t, resp, 200)
	var pages []map[string]interface{}
	helpers.ParseJSON(t, resp, &pages)
	// No session on the request, so only published pages are listed
	if len(pages) != 2 {
		t.Errorf("Expected the 2 published pages, got %d", len(pages))
	}
}

// The list route is mounted behind the optional-auth middleware, so a request
// with an admin session can widen the listing to unpublished pages while an
// anonymous request never can.
func TestListPagesAllRequiresSession(t *testing.T) {
	db := setupTestDB(t)
	helpers.CreateTestPage(t, db, "home", "Home", true)
	helpers.CreateTestPage(t, db, "draft", "Draft", false)

	pageHandler := &handlers.PageHandler{DB: db, AdminDB: db}

	// Anonymous request through the optional-auth middleware: no cookie, so
	// it passes through without a user and all=true is ignored
	anon := fiber.New()
	anon.Get("/api/pages", middleware.AuthOptional(), pageHandler.ListPages)

	resp := doJSON(t, anon, "GET", "/api/pages?all=true", nil)
	helpers.AssertStatus(t, resp, 200)
	var pages []map[string]interface{}
	helpers.ParseJSON(t, resp, &pages)
	if len(pages) != 1 {
		t.Fatalf("Anonymous all=true should list only the published page, got %d", len(pages))
	}
	if pages[0]["slug"] != "home" {
		t.Errorf("Expected the published page, got %+v", pages[0])
	}

	// Authenticated request: a session stub supplies the user the middleware
	// would set from a valid cookie
	admin := fiber.New()
	admin.Get("/api/pages", func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{"id": helpers.NewUserID()})
		return c.Next()
	}, pageHandler.ListPages)

	resp = doJSON(t, admin, "GET", "/api/pages?all=true", nil)
	helpers.AssertStatus(t, resp, 200)
	helpers.ParseJSON(t, resp, &pages)
	if len(pages) != 2 {
		t.Fatalf("Admin all=true should list unpublished pages too, got %d", len(pages))
	}

	// Without all=true the admin listing stays published-only
	resp = doJSON(t, admin, "GET", "/api/pages", nil)
	helpers.AssertStatus(t, resp, 200)
	helpers.ParseJSON(t, resp, &pages)
	if len(pages) != 1 {
		t.Errorf("Admin default listing should stay published-only, got %d", len(pages))
	}
}

func TestCreatePageDuplicateConflict(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(db)
	helpers.CreateTestPage(t, db, "home", "Home", true)

	resp := doJSON(t, app, "POST", "/api/pages", map[string]interface{}{
		"slug":  "home",
		"title": "Home again",
	})
	helpers.AssertStatus(t, resp, 409)
}

func TestCreatePageInvalidSlug(t *testing.T) {
	app := setupApp(setupTestDB(t))

	resp := doJSON(t, app, "POST", "/api/pages", map[string]interface{}{
		"slug":  "Not A Slug",
		"title": "x",
	})
	helpers.AssertStatus(t, resp, 400)
}

func TestGetLayoutNoContent(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(db)
	helpers.CreateTestPage(t, db, "home", "Home", true)

	// Page without a layout and unknown page both yield 204
	for _, target := range []string{"/api/pages/home/layout", "/api/pages/missing/layout"} {
		resp := doJSON(t, app, "GET", target, nil)
		helpers.AssertStatus(t, resp, 204)
		helpers.AssertNoContent(t, resp)
	}
}

func TestPutAndGetLayout(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(db)
	helpers.CreateTestPage(t, db, "home", "Home", true)

	// Geometry coordinates arrive as strings from some clients
	body := map[string]interface{}{
		"instances": map[string]interface{}{
			"hero-1": map[string]interface{}{"type": "hero", "props": map[string]interface{}{"headline": "Kickoff"}},
		},
		"layout": []map[string]interface{}{
			{"i": "hero-1", "x": "0", "y": "0", "w": "12", "h": "2"},
		},
	}
	resp := doJSON(t, app, "PUT", "/api/pages/home/layout", body)
	helpers.AssertStatus(t, resp, 200)

	var result map[string]interface{}
	helpers.ParseJSON(t, resp, &result)
	if result["ok"] != true || result["savedAt"] == nil {
		t.Errorf("Expected mutation success envelope, got %+v", result)
	}

	resp = doJSON(t, app, "GET", "/api/pages/home/layout", nil)
	helpers.AssertStatus(t, resp, 200)

	var doc map[string]interface{}
	helpers.ParseJSON(t, resp, &doc)
	instances := doc["instances"].(map[string]interface{})
	if len(instances) != 1 {
		t.Errorf("Expected one instance, got %+v", instances)
	}
	items := doc["layout"].([]interface{})
	item := items[0].(map[string]interface{})
	if item["w"] != float64(12) {
		t.Errorf("String coordinates should normalize to numbers, got %v", item["w"])
	}
}

func TestPutLayoutUnknownPage(t *testing.T) {
	app := setupApp(setupTestDB(t))

	resp := doJSON(t, app, "PUT", "/api/pages/missing/layout", map[string]interface{}{
		"instances": map[string]interface{}{},
		"layout":    []interface{}{},
	})
	helpers.AssertStatus(t, resp, 404)
}

func TestMergeThemeEndpoint(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(db)
	helpers.CreateTestPage(t, db, "home", "Home", true)
	helpers.SetTestOverrides(t, db, "home", map[string]interface{}{"primary": "blue", "fontSize": float64(14)})

	resp := doJSON(t, app, "PATCH", "/api/pages/home/theme", map[string]interface{}{
		"overrides":   map[string]interface{}{"primary": "red", "spacing": float64(8)},
		"description": "palette tweak",
	})
	helpers.AssertStatus(t, resp, 200)

	var merged map[string]interface{}
	helpers.ParseJSON(t, resp, &merged)
	if merged["primary"] != "red" || merged["fontSize"] != float64(14) || merged["spacing"] != float64(8) {
		t.Errorf("Merged response wrong: %+v", merged)
	}

	resp = doJSON(t, app, "GET", "/api/pages/home/theme", nil)
	helpers.AssertStatus(t, resp, 200)
	var stored map[string]interface{}
	helpers.ParseJSON(t, resp, &stored)
	if stored["primary"] != "red" {
		t.Errorf("Stored overrides wrong: %+v", stored)
	}

	resp = doJSON(t, app, "GET", "/api/pages/home/theme/audit", nil)
	helpers.AssertStatus(t, resp, 200)
	var audit []map[string]interface{}
	helpers.ParseJSON(t, resp, &audit)
	if len(audit) != 1 {
		t.Fatalf("Expected one audit entry, got %d", len(audit))
	}
	if audit[0]["description"] != "palette tweak" {
		t.Errorf("Audit entry wrong: %+v", audit[0])
	}
}

func TestDeletePageEndpoint(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(db)
	helpers.CreateTestPage(t, db, "home", "Home", true)
	helpers.CreateTestLayout(t, db, "home", helpers.SampleDocument())

	resp := doJSON(t, app, "DELETE", "/api/pages/home", nil)
	helpers.AssertStatus(t, resp, 200)

	var result map[string]interface{}
	helpers.ParseJSON(t, resp, &result)
	if result["affectedRows"] != float64(2) {
		t.Errorf("Expected 2 affected rows (page + layout), got %v", result["affectedRows"])
	}

	resp = doJSON(t, app, "GET", "/api/pages/home", nil)
	helpers.AssertStatus(t, resp, 404)
}
