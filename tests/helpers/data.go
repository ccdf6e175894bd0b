package helpers

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Hampilk/trebujton-sub000/internal/layout"
	"github.com/Hampilk/trebujton-sub000/internal/models"
)

// NewUserID returns a random user id in the shape the audit trail stores
func NewUserID() string {
	return uuid.New().String()
}

// CreateTestPage creates a page row
func CreateTestPage(t *testing.T, db *gorm.DB, slug, title string, published bool) uint64 {
	t.Helper()
	page := models.Page{
		Slug:        slug,
		Title:       title,
		IsPublished: published,
	}
	if err := db.Create(&page).Error; err != nil {
		t.Fatalf("Failed to create page %s: %v", slug, err)
	}
	return page.PageID
}

// CreateTestLayout attaches a layout document to an existing page
func CreateTestLayout(t *testing.T, db *gorm.DB, slug string, doc *layout.Document) {
	t.Helper()
	var page models.Page
	if err := db.Where("slug = ?", slug).First(&page).Error; err != nil {
		t.Fatalf("Failed to find page %s: %v", slug, err)
	}

	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("Failed to encode layout document: %v", err)
	}

	row := models.PageLayout{
		PageID:     page.PageID,
		LayoutJSON: models.JSON{JSON: datatypes.JSON(encoded)},
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to create layout for %s: %v", slug, err)
	}
}

// SetTestOverrides writes theme overrides directly onto a page row
func SetTestOverrides(t *testing.T, db *gorm.DB, slug string, overrides map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(overrides)
	if err != nil {
		t.Fatalf("Failed to marshal overrides: %v", err)
	}
	if err := db.Model(&models.Page{}).Where("slug = ?", slug).
		Update("theme_overrides", models.JSON{JSON: datatypes.JSON(raw)}).Error; err != nil {
		t.Fatalf("Failed to set overrides on %s: %v", slug, err)
	}
}

// SampleDocument builds a small two-widget document with grid geometry
func SampleDocument() *layout.Document {
	return &layout.Document{
		Instances: map[string]layout.Widget{
			"hero-1": {
				Type:  "hero",
				Props: map[string]interface{}{"headline": "Match day"},
			},
			"table-1": {
				Type:  "stats-table",
				Props: map[string]interface{}{"rows": float64(10)},
			},
		},
		Layout: []layout.GridItem{
			{I: "hero-1", X: 0, Y: 0, W: 12, H: 2},
			{I: "table-1", X: 0, Y: 2, W: 6, H: 4},
		},
	}
}
