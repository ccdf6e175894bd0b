package models

import (
	"time"
)

// PageLayout holds the layout document for a page as a single JSON blob.
// page_id is unique: one live layout per page, overwritten last-writer-wins.
// Shape: {instances: {<id>: {type, props}}, layout: [{i, x, y, w, h}]}
type PageLayout struct {
	LayoutID   uint64 `gorm:"primaryKey;autoIncrement"`
	PageID     uint64 `gorm:"uniqueIndex;not null"`
	LayoutJSON JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the table name for PageLayout
func (PageLayout) TableName() string {
	return "page_layouts"
}
