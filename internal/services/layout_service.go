package services

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Hampilk/trebujton-sub000/internal/layout"
	"github.com/Hampilk/trebujton-sub000/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoadLayout fetches the layout document for a page. Returns (nil, nil) when
// the page does not exist or has no layout yet; that is a normal outcome, not
// an error. Any other backend failure propagates.
func LoadLayout(db *gorm.DB, slug string) (*layout.Document, error) {
	var page models.Page
	if err := db.Where("slug = ?", slug).First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var row models.PageLayout
	if err := db.Where("page_id = ?", page.PageID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return layout.Decode(row.LayoutJSON.JSON)
}

// SaveLayout upserts the layout document for a page, last-writer-wins. When
// overrides is non-nil, the page's theme_overrides column is replaced in the
// same transaction and an audit entry records the old and new values. The
// document and overrides are validated before any write occurs.
func SaveLayout(db *gorm.DB, slug string, doc *layout.Document, overrides map[string]interface{}, userID, description string) (time.Time, int64, error) {
	if err := doc.Validate(); err != nil {
		return time.Time{}, 0, err
	}
	if overrides != nil {
		if err := layout.ValidateBag(overrides); err != nil {
			return time.Time{}, 0, err
		}
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return time.Time{}, 0, err
	}

	var savedAt time.Time
	var affectedRows int64

	err = db.Transaction(func(tx *gorm.DB) error {
		var page models.Page
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("slug = ?", slug).
			First(&page).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var row models.PageLayout
		err := tx.Where("page_id = ?", page.PageID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.PageLayout{
				PageID:     page.PageID,
				LayoutJSON: models.JSON{JSON: datatypes.JSON(encoded)},
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			affectedRows++
		case err != nil:
			return err
		default:
			result := tx.Model(&row).Update("layout_json", models.JSON{JSON: datatypes.JSON(encoded)})
			if result.Error != nil {
				return result.Error
			}
			affectedRows += result.RowsAffected
		}

		pageUpdates := map[string]interface{}{"updated_by": userID}

		if overrides != nil {
			old, err := unmarshalOverrides(page.ThemeOverrides)
			if err != nil {
				return err
			}
			newValue, err := marshalOverrides(overrides)
			if err != nil {
				return err
			}
			pageUpdates["theme_overrides"] = newValue

			if err := appendAudit(tx, page.PageID, userID, old, overrides, description); err != nil {
				return err
			}
			affectedRows++
		}

		if err := tx.Model(&page).Updates(pageUpdates).Error; err != nil {
			return err
		}

		savedAt = row.UpdatedAt
		if savedAt.IsZero() {
			savedAt = time.Now().UTC()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, 0, err
	}
	return savedAt, affectedRows, nil
}
