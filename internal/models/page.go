package models

import (
	"time"
)

// Page represents one builder-managed page of the dashboard. It owns at most
// one layout row and the full theme-override audit history; both are removed
// by the delete cascade.
type Page struct {
	PageID         uint64 `gorm:"primaryKey;autoIncrement"`
	Slug           string `gorm:"uniqueIndex;size:255;not null"`
	Title          string `gorm:"size:255;not null"`
	IsPublished    bool   `gorm:"not null;default:false"`
	ThemeOverrides JSON
	CreatedAt      time.Time
	UpdatedAt      time.Time
	UpdatedBy      string               `gorm:"type:char(36)"`
	Layout         *PageLayout          `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE"`
	AuditEntries   []ThemeOverrideAudit `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name for Page
func (Page) TableName() string {
	return "pages"
}
