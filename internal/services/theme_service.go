package services

import (
	"encoding/json"
	"errors"
	"reflect"

	"github.com/Hampilk/trebujton-sub000/internal/layout"
	"github.com/Hampilk/trebujton-sub000/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/hints"
)

// GetThemeOverrides reads the current overrides bag for a page. Returns
// ErrNotFound when the slug is unknown; a page without overrides yields an
// empty bag.
func GetThemeOverrides(db *gorm.DB, slug string) (map[string]interface{}, error) {
	page, err := GetPageBySlug(db, slug)
	if err != nil {
		return nil, err
	}
	return unmarshalOverrides(page.ThemeOverrides)
}

// MergeThemeOverrides shallow-merges a partial override bag over the current
// one: keys in the partial replace, keys absent from it are preserved. The
// merged result is written and an audit entry appended, all under a page row
// lock. A merge that changes nothing skips the write and the audit entry, so
// repeating the same partial is idempotent end to end. Concurrent merges are
// last-writer-wins.
func MergeThemeOverrides(db *gorm.DB, slug string, partial map[string]interface{}, userID, description string) (map[string]interface{}, error) {
	if err := layout.ValidateBag(partial); err != nil {
		return nil, err
	}

	var merged map[string]interface{}

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

		old, err := unmarshalOverrides(page.ThemeOverrides)
		if err != nil {
			return err
		}

		merged = MergeOverrides(old, partial)
		if reflect.DeepEqual(old, merged) {
			return nil
		}

		newValue, err := marshalOverrides(merged)
		if err != nil {
			return err
		}
		if err := tx.Model(&page).Updates(map[string]interface{}{
			"theme_overrides": newValue,
			"updated_by":      userID,
		}).Error; err != nil {
			return err
		}

		return appendAudit(tx, page.PageID, userID, old, merged, description)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeOverrides is the pure shallow merge: a copy of base with every key of
// partial laid on top. Nested maps are replaced whole, not merged.
func MergeOverrides(base, partial map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(partial))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	return merged
}

// ListThemeAudit returns the most recent audit entries for a page, newest
// first. limit <= 0 means no limit.
func ListThemeAudit(db *gorm.DB, slug string, limit int) ([]models.ThemeOverrideAudit, error) {
	page, err := GetPageBySlug(db, slug)
	if err != nil {
		return nil, err
	}

	query := db.Clauses(hints.CommentBefore("select", "theme_audit_trail")).
		Where("page_id = ?", page.PageID).
		Order("created_at DESC, audit_id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.ThemeOverrideAudit
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// appendAudit writes one immutable audit row inside the caller's transaction.
func appendAudit(tx *gorm.DB, pageID uint64, userID string, oldBag, newBag map[string]interface{}, description string) error {
	oldJSON, err := json.Marshal(oldBag)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(newBag)
	if err != nil {
		return err
	}
	entry := models.ThemeOverrideAudit{
		PageID:            pageID,
		UserID:            userID,
		OldOverrides:      models.JSON{JSON: datatypes.JSON(oldJSON)},
		NewOverrides:      models.JSON{JSON: datatypes.JSON(newJSON)},
		ChangeDescription: description,
	}
	return tx.Create(&entry).Error
}
