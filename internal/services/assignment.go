package services

import (
	"context"

	"github.com/biurosoft/backoffice/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentService handles user-made icon assignments. Manual rows take
// precedence over the synchronizer: assigning manually claims the pair even
// when an auto row already exists, and the synchronizer never deletes a row
// flagged manual.
type AssignmentService struct {
	db *gorm.DB
}

func NewAssignmentService(db *gorm.DB) *AssignmentService {
	return &AssignmentService{db: db}
}

// Assign creates or claims the (client, icon) pair as manual.
func (s *AssignmentService) Assign(ctx context.Context, clientID, iconID string) error {
	row := models.ClientIconAssignment{ClientID: clientID, IconID: iconID, IsAutoAssigned: false}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}, {Name: "icon_id"}},
		DoUpdates: clause.Assignments(map[string]any{"is_auto_assigned": false}),
	}).Create(&row).Error
}

// Unassign removes the pair whatever created it; an explicit user removal
// outranks both manual and auto state. If the icon's condition still matches
// the client, the next evaluation recreates an auto row.
func (s *AssignmentService) Unassign(ctx context.Context, clientID, iconID string) error {
	return s.db.WithContext(ctx).
		Where("client_id = ? AND icon_id = ?", clientID, iconID).
		Delete(&models.ClientIconAssignment{}).Error
}

func (s *AssignmentService) ListForClient(ctx context.Context, clientID string) ([]models.ClientIconAssignment, error) {
	var rows []models.ClientIconAssignment
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Order("created_at").Find(&rows).Error
	return rows, err
}
