package models

import (
	"time"

	"github.com/biurosoft/backoffice/internal/conditions"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IconType selects how the icon is rendered client-side.
type IconType string

const (
	IconTypeLucide IconType = "lucide"
	IconTypeCustom IconType = "custom"
	IconTypeEmoji  IconType = "emoji"
)

// Icon is a tenant-scoped tag definition. When AutoAssignCondition is set,
// the synchronizer keeps an auto assignment row on every client matching the
// condition tree; a nil condition means the icon is assigned manually only.
// Name uniqueness among the tenant's active icons is enforced by IconService.
type Icon struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	CompanyID string `gorm:"type:uuid;not null;index"`

	Name      string `gorm:"not null"`
	Color     string
	IconType  IconType `gorm:"not null"`
	IconValue string
	Tooltip   string

	AutoAssignCondition *conditions.Condition `gorm:"type:jsonb;serializer:json"`

	IsActive  bool `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *Icon) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
