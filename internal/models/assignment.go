package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientIconAssignment joins a client to an icon, unique per pair. Rows a
// user creates keep IsAutoAssigned=false and are never created or deleted by
// the synchronizer; rows flagged true are fully owned by it. The unique index
// on (client_id, icon_id) is what makes the synchronizer's insert-ignore safe
// under concurrent evaluators.
type ClientIconAssignment struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	ClientID       string `gorm:"type:uuid;not null;uniqueIndex:idx_assignments_client_icon"`
	IconID         string `gorm:"type:uuid;not null;uniqueIndex:idx_assignments_client_icon"`
	IsAutoAssigned bool   `gorm:"not null;index"`
	CreatedAt      time.Time
}

func (a *ClientIconAssignment) TableName() string { return "client_icon_assignments" }

func (a *ClientIconAssignment) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
