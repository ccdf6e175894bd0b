package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/Hampilk/trebujton-sub000/internal/layout"
	"github.com/Hampilk/trebujton-sub000/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PageInput is the create/bulk-create payload for a page.
type PageInput struct {
	Slug           string                 `json:"slug"`
	Title          string                 `json:"title"`
	IsPublished    bool                   `json:"isPublished"`
	ThemeOverrides map[string]interface{} `json:"themeOverrides,omitempty"`
}

// PageUpdate carries the mutable page fields; nil pointers mean "leave as is".
type PageUpdate struct {
	Title       *string `json:"title,omitempty"`
	IsPublished *bool   `json:"isPublished,omitempty"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CreatePage creates a page record. The slug must be a lowercase hyphenated
// identifier and unique; theme overrides are validated before the write.
func CreatePage(db *gorm.DB, in PageInput, userID string) (*models.Page, error) {
	if !slugPattern.MatchString(in.Slug) {
		return nil, fmt.Errorf("E_VALIDATION - invalid slug %q", in.Slug)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("E_VALIDATION - title is required")
	}
	if err := layout.ValidateBag(in.ThemeOverrides); err != nil {
		return nil, err
	}

	overrides, err := marshalOverrides(in.ThemeOverrides)
	if err != nil {
		return nil, err
	}

	page := models.Page{
		Slug:           in.Slug,
		Title:          in.Title,
		IsPublished:    in.IsPublished,
		ThemeOverrides: overrides,
		UpdatedBy:      userID,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing models.Page
		err := tx.Where("slug = ?", in.Slug).First(&existing).Error
		if err == nil {
			return ErrDuplicateSlug
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&page).Error
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPageBySlug fetches one page record. Returns ErrNotFound when the slug is
// unknown.
func GetPageBySlug(db *gorm.DB, slug string) (*models.Page, error) {
	var page models.Page
	if err := db.Where("slug = ?", slug).First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &page, nil
}

// ListPages returns pages ordered by slug, optionally restricted to
// published ones.
func ListPages(db *gorm.DB, publishedOnly bool) ([]models.Page, error) {
	var pages []models.Page
	query := db.Order("slug")
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if err := query.Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

// UpdatePage applies a partial update to the page record under a row lock.
func UpdatePage(db *gorm.DB, slug string, update PageUpdate, userID string) (*models.Page, error) {
	if update.Title != nil && *update.Title == "" {
		return nil, fmt.Errorf("E_VALIDATION - title cannot be empty")
	}

	var page models.Page
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("slug = ?", slug).
			First(&page).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{"updated_by": userID}
		if update.Title != nil {
			updates["title"] = *update.Title
		}
		if update.IsPublished != nil {
			updates["is_published"] = *update.IsPublished
		}
		return tx.Model(&page).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// DeletePage removes a page and everything it owns: the layout row and the
// theme-override audit history. The deletes are explicit so the cascade holds
// even on databases migrated without FK enforcement.
func DeletePage(db *gorm.DB, slug string) (int64, error) {
	var affectedRows int64

	err := db.Transaction(func(tx *gorm.DB) error {
		var page models.Page
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("slug = ?", slug).
			First(&page).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		result := tx.Where("page_id = ?", page.PageID).Delete(&models.ThemeOverrideAudit{})
		if result.Error != nil {
			return result.Error
		}
		affectedRows += result.RowsAffected

		result = tx.Where("page_id = ?", page.PageID).Delete(&models.PageLayout{})
		if result.Error != nil {
			return result.Error
		}
		affectedRows += result.RowsAffected

		result = tx.Delete(&page)
		if result.Error != nil {
			return result.Error
		}
		affectedRows += result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affectedRows, nil
}

// marshalOverrides converts an override bag to a JSON column value. A nil bag
// marshals to an empty object so the column is never SQL NULL.
func marshalOverrides(overrides map[string]interface{}) (models.JSON, error) {
	if overrides == nil {
		overrides = map[string]interface{}{}
	}
	data, err := json.Marshal(overrides)
	if err != nil {
		return models.JSON{}, err
	}
	return models.JSON{JSON: datatypes.JSON(data)}, nil
}

// unmarshalOverrides converts a JSON column value back to an override bag.
func unmarshalOverrides(value models.JSON) (map[string]interface{}, error) {
	overrides := map[string]interface{}{}
	if len(value.JSON) == 0 {
		return overrides, nil
	}
	if err := json.Unmarshal(value.JSON, &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}
