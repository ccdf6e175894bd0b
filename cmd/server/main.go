package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"

	"github.com/Hampilk/trebujton-sub000/internal/autosave"
	"github.com/Hampilk/trebujton-sub000/internal/config"
	"github.com/Hampilk/trebujton-sub000/internal/database"
	"github.com/Hampilk/trebujton-sub000/internal/handlers"
	"github.com/Hampilk/trebujton-sub000/internal/layout"
	"github.com/Hampilk/trebujton-sub000/internal/middleware"
	"github.com/Hampilk/trebujton-sub000/internal/services"
	"github.com/Hampilk/trebujton-sub000/internal/store"
	"github.com/Hampilk/trebujton-sub000/internal/types"

	_ "github.com/Hampilk/trebujton-sub000/docs/api" // Swagger docs
)

// @title Page Builder Data Service API
// @version 1.0.0
// @description Layout persistence, theme overrides, and builder autosave for the dashboard page builder
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/Hampilk/trebujton-sub000

// @license.name MIT

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database (app pool, read-mostly)
	appDB, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to app database: %v", err)
	}
	defer database.Close(appDB)

	// Connect to database (admin pool, mutations)
	adminDB, err := database.ConnectAdmin(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to admin database: %v", err)
	}
	defer database.Close(adminDB)

	// Run auto-migrations
	if err := database.AutoMigrate(adminDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Builder session state: working-copy store plus autosave controller
	// writing through the admin pool
	layoutStore := store.New()
	controller := autosave.New(layoutStore,
		autosave.SaverFunc(func(pageID string, doc *layout.Document, overrides map[string]interface{}, editedBy string) error {
			if editedBy == "" {
				editedBy = "autosave"
			}
			_, _, err := services.SaveLayout(adminDB, pageID, doc, overrides, editedBy, "builder autosave")
			return err
		}),
		time.Duration(cfg.AutosaveDebounceMs)*time.Millisecond,
	)
	defer controller.Close()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("pagebuilder")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	// Health
	api.Get("/health", func(c *fiber.Ctx) error {
		result := services.HealthCheck(cfg, appDB)
		status := fiber.StatusOK
		if result.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(result)
	})

	// Create handlers
	pageHandler := &handlers.PageHandler{DB: appDB, AdminDB: adminDB}
	layoutHandler := &handlers.LayoutHandler{DB: appDB, AdminDB: adminDB}
	themeHandler := &handlers.ThemeHandler{DB: appDB, AdminDB: adminDB}
	builderHandler := &handlers.BuilderHandler{DB: appDB, Store: layoutStore, Controller: controller}

	// Page routes (public GET, admin mutations)
	pages := api.Group("/pages")
	pages.Get("/", middleware.AuthOptional(), pageHandler.ListPages)
	pages.Get("/:slug", pageHandler.GetPage)
	pages.Get("/:slug/layout", layoutHandler.GetLayout)
	pages.Get("/:slug/theme", themeHandler.GetTheme)

	pages.Post("/", middleware.AuthAdmin(), pageHandler.CreatePages)
	pages.Patch("/:slug", middleware.AuthAdmin(), pageHandler.UpdatePage)
	pages.Delete("/:slug", middleware.AuthAdmin(), pageHandler.DeletePage)
	pages.Put("/:slug/layout", middleware.AuthAdmin(), layoutHandler.PutLayout)
	pages.Patch("/:slug/theme", middleware.AuthAdmin(), themeHandler.MergeTheme)
	pages.Get("/:slug/theme/audit", middleware.AuthAdmin(), themeHandler.ListAudit)

	// Builder session routes (all admin)
	builder := api.Group("/builder", middleware.AuthAdmin())
	builder.Post("/:slug/open", builderHandler.Open)
	builder.Post("/:slug/instances", builderHandler.UpdateInstances)
	builder.Post("/:slug/layout", builderHandler.UpdateGeometry)
	builder.Post("/:slug/theme", builderHandler.UpdateTheme)
	builder.Post("/:slug/save", builderHandler.Save)
	builder.Get("/:slug/status", builderHandler.Status)
	builder.Delete("/:slug", builderHandler.Close)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Authorizer client is created lazily on the first authenticated request
	services.ConfigureAuthorizer(cfg)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
		errorType = e.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
