package models

import (
	"time"
)

// ThemeOverrideAudit is an append-only record of one theme-override change.
// Rows are never updated or deleted except through the page delete cascade.
type ThemeOverrideAudit struct {
	AuditID           uint64 `gorm:"primaryKey;autoIncrement"`
	PageID            uint64 `gorm:"index;not null"`
	UserID            string `gorm:"type:char(36)"`
	OldOverrides      JSON
	NewOverrides      JSON
	ChangeDescription string `gorm:"size:512"`
	CreatedAt         time.Time
}

// TableName overrides the table name for ThemeOverrideAudit
func (ThemeOverrideAudit) TableName() string {
	return "page_theme_override_audit"
}
