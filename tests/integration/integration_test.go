package integration_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/Hampilk/trebujton-sub000/internal/config"
	"github.com/Hampilk/trebujton-sub000/internal/database"
	"github.com/Hampilk/trebujton-sub000/internal/models"
	"github.com/Hampilk/trebujton-sub000/internal/services"
	"github.com/Hampilk/trebujton-sub000/tests/helpers"
)

func dbImage(envKey, fallback string) string {
	if img := os.Getenv(envKey); img != "" {
		return img
	}
	return fallback
}

// TestWithMariaDB tests the service against a real MariaDB container
func TestWithMariaDB(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	mariadbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        dbImage("DB_IMAGE", "mariadb:11"),
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "rootpass",
				"MYSQL_DATABASE":      "testdb",
				"MYSQL_USER":          "testuser",
				"MYSQL_PASSWORD":      "testpass",
			},
			WaitingFor: wait.ForLog("ready for connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start MariaDB container: %v", err)
	}
	defer func() {
		if err := mariadbContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate MariaDB container: %v", err)
		}
	}()

	host, err := mariadbContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := mariadbContainer.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.Config{
		DBType:               "mysql",
		DBHost:               host,
		DBPort:               port.Port(),
		DBDatabase:           "testdb",
		DBAppUser:            "testuser",
		DBAppPassword:        "testpass",
		DBAppConnectionLimit: 5,
	}

	// Wait for database to be ready
	time.Sleep(5 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	runGatewaySuite(t, db)
}

// TestWithPostgreSQL tests the service against a real PostgreSQL container
func TestWithPostgreSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        dbImage("POSTGRES_IMAGE", "postgres:17"),
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_USER":     "testuser",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.Config{
		DBType:               "postgres",
		DBHost:               host,
		DBPort:               port.Port(),
		DBDatabase:           "testdb",
		DBAppUser:            "testuser",
		DBAppPassword:        "testpass",
		DBAppConnectionLimit: 5,
	}

	time.Sleep(2 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	runGatewaySuite(t, db)
}

// runGatewaySuite exercises the persistence gateway against a real database.
func runGatewaySuite(t *testing.T, db *gorm.DB) {
	t.Run("PageRoundtrip", func(t *testing.T) {
		testPageRoundtrip(t, db)
	})
	t.Run("LayoutSaveLoad", func(t *testing.T) {
		testLayoutSaveLoad(t, db)
	})
	t.Run("ThemeMergeAndAudit", func(t *testing.T) {
		testThemeMergeAndAudit(t, db)
	})
	t.Run("CascadeDelete", func(t *testing.T) {
		testCascadeDelete(t, db)
	})
}

func testPageRoundtrip(t *testing.T, db *gorm.DB) {
	userID := helpers.NewUserID()

	created, err := services.CreatePage(db, services.PageInput{
		Slug:           "int-home",
		Title:          "Home",
		IsPublished:    true,
		ThemeOverrides: map[string]interface{}{"primary": "#003366"},
	}, userID)
	if err != nil {
		t.Fatalf("Failed to create page: %v", err)
	}
	if created.PageID == 0 {
		t.Error("Expected an assigned page id")
	}

	loaded, err := services.GetPageBySlug(db, "int-home")
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	if loaded.Title != "Home" || loaded.UpdatedBy != userID {
		t.Errorf("Loaded page differs: %+v", loaded)
	}

	overrides, err := services.GetThemeOverrides(db, "int-home")
	if err != nil {
		t.Fatalf("Failed to load overrides: %v", err)
	}
	if overrides["primary"] != "#003366" {
		t.Errorf("Overrides lost on JSON column roundtrip: %+v", overrides)
	}
}

func testLayoutSaveLoad(t *testing.T, db *gorm.DB) {
	helpers.CreateTestPage(t, db, "int-layout", "Layout", true)

	// No layout yet
	doc, err := services.LoadLayout(db, "int-layout")
	if err != nil {
		t.Fatalf("LoadLayout failed: %v", err)
	}
	if doc != nil {
		t.Errorf("Expected nil document before the first save, got %+v", doc)
	}

	savedAt, _, err := services.SaveLayout(db, "int-layout", helpers.SampleDocument(), nil, "tester", "")
	if err != nil {
		t.Fatalf("SaveLayout failed: %v", err)
	}
	if savedAt.IsZero() {
		t.Error("Expected a save timestamp")
	}

	doc, err = services.LoadLayout(db, "int-layout")
	if err != nil {
		t.Fatalf("LoadLayout failed: %v", err)
	}
	if doc == nil || len(doc.Instances) != 2 || len(doc.Layout) != 2 {
		t.Errorf("Document lost on roundtrip: %+v", doc)
	}
}

func testThemeMergeAndAudit(t *testing.T, db *gorm.DB) {
	helpers.CreateTestPage(t, db, "int-theme", "Theme", true)
	helpers.SetTestOverrides(t, db, "int-theme", map[string]interface{}{"primary": "blue"})

	partial := map[string]interface{}{"primary": "red", "spacing": float64(8)}
	merged, err := services.MergeThemeOverrides(db, "int-theme", partial, "tester", "tweak")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if merged["primary"] != "red" || merged["spacing"] != float64(8) {
		t.Errorf("Merge result wrong: %+v", merged)
	}

	// Idempotent repeat: no extra audit row
	if _, err := services.MergeThemeOverrides(db, "int-theme", partial, "tester", "tweak"); err != nil {
		t.Fatalf("Repeat merge failed: %v", err)
	}
	entries, err := services.ListThemeAudit(db, "int-theme", 0)
	if err != nil {
		t.Fatalf("ListThemeAudit failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected one audit entry, got %d", len(entries))
	}
}

func testCascadeDelete(t *testing.T, db *gorm.DB) {
	pageID := helpers.CreateTestPage(t, db, "int-delete", "Delete", true)
	helpers.CreateTestLayout(t, db, "int-delete", helpers.SampleDocument())
	if _, err := services.MergeThemeOverrides(db, "int-delete", map[string]interface{}{"a": "b"}, "tester", ""); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	affected, err := services.DeletePage(db, "int-delete")
	if err != nil {
		t.Fatalf("DeletePage failed: %v", err)
	}
	if affected != 3 {
		t.Errorf("Expected 3 affected rows, got %d", affected)
	}

	var layouts, audits int64
	db.Model(&models.PageLayout{}).Where("page_id = ?", pageID).Count(&layouts)
	db.Model(&models.ThemeOverrideAudit{}).Where("page_id = ?", pageID).Count(&audits)
	if layouts != 0 || audits != 0 {
		t.Errorf("Cascade left rows behind: layouts=%d audits=%d", layouts, audits)
	}

	if _, err := services.GetPageBySlug(db, "int-delete"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

// TestHealthCheck verifies the health surface against a real database and an
// unreachable Authorizer
func TestHealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        dbImage("POSTGRES_IMAGE", "postgres:17"),
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_USER":     "testuser",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	host, _ := postgresContainer.Host(ctx)
	port, _ := postgresContainer.MappedPort(ctx, "5432")

	cfg := &config.Config{
		DBType:        "postgres",
		DBHost:        host,
		DBPort:        port.Port(),
		DBDatabase:    "testdb",
		DBAppUser:     "testuser",
		DBAppPassword: "testpass",
		AuthzURL:      "http://localhost:9999", // Non-existent service
	}

	time.Sleep(2 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	result := services.HealthCheck(cfg, db)

	if result.Database != "ok" {
		t.Errorf("Expected database to be ok, got: %s", result.Database)
	}
	if result.Authorizer != "unreachable" {
		t.Errorf("Expected authorizer to be unreachable, got: %s", result.Authorizer)
	}
	if result.Status != "unhealthy" {
		t.Errorf("Expected status to be unhealthy, got: %s", result.Status)
	}
}
