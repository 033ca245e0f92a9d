package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/biurosoft/backoffice/internal/conditions"
	"github.com/biurosoft/backoffice/internal/models"
	"gorm.io/gorm"
)

var ErrIconNameTaken = errors.New("icon_name_taken")

// IconInput carries the writable fields of an icon definition.
type IconInput struct {
	CompanyID string
	Name      string
	Color     string
	IconType  models.IconType
	IconValue string
	Tooltip   string

	AutoAssignCondition *conditions.Condition
}

// IconService manages tenant icon definitions and triggers reevaluation
// sweeps when an icon's condition tree actually changes.
type IconService struct {
	db         *gorm.DB
	log        *slog.Logger
	autoAssign *AutoAssignService
}

func NewIconService(db *gorm.DB, log *slog.Logger, autoAssign *AutoAssignService) *IconService {
	return &IconService{db: db, log: log, autoAssign: autoAssign}
}

func (s *IconService) Create(ctx context.Context, in IconInput) (*models.Icon, error) {
	if in.CompanyID == "" {
		return nil, ErrMissingCompany
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrMissingName
	}
	taken, err := s.nameTaken(ctx, in.CompanyID, in.Name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrIconNameTaken
	}

	iconType := in.IconType
	if iconType == "" {
		iconType = models.IconTypeLucide
	}
	icon := models.Icon{
		CompanyID:           in.CompanyID,
		Name:                in.Name,
		Color:               in.Color,
		IconType:            iconType,
		IconValue:           in.IconValue,
		Tooltip:             in.Tooltip,
		AutoAssignCondition: in.AutoAssignCondition,
		IsActive:            true,
	}
	if err := s.db.WithContext(ctx).Create(&icon).Error; err != nil {
		return nil, err
	}
	if icon.AutoAssignCondition != nil {
		s.reevaluate(ctx, &icon)
	}
	return &icon, nil
}

// Update applies the input and, when the condition tree changed, triggers a
// reevaluation. Change detection is deep equality on the serialized tree.
func (s *IconService) Update(ctx context.Context, id string, in IconInput) (*models.Icon, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrMissingName
	}
	var icon models.Icon
	if err := s.db.WithContext(ctx).First(&icon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if !strings.EqualFold(in.Name, icon.Name) {
		taken, err := s.nameTaken(ctx, icon.CompanyID, in.Name, icon.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrIconNameTaken
		}
	}

	conditionChanged := !conditions.Equal(icon.AutoAssignCondition, in.AutoAssignCondition)

	icon.Name = in.Name
	icon.Color = in.Color
	if in.IconType != "" {
		icon.IconType = in.IconType
	}
	icon.IconValue = in.IconValue
	icon.Tooltip = in.Tooltip
	icon.AutoAssignCondition = in.AutoAssignCondition
	if err := s.db.WithContext(ctx).Save(&icon).Error; err != nil {
		return nil, err
	}

	if conditionChanged {
		s.reevaluate(ctx, &icon)
	}
	return &icon, nil
}

func (s *IconService) Get(ctx context.Context, id string) (*models.Icon, error) {
	var icon models.Icon
	if err := s.db.WithContext(ctx).First(&icon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &icon, nil
}

// List returns the tenant's active icons.
func (s *IconService) List(ctx context.Context, companyID string) ([]models.Icon, error) {
	var icons []models.Icon
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Order("name").Find(&icons).Error
	return icons, err
}

// Deactivate retires an icon and drops its auto rows right away, so the tag
// disappears from clients immediately instead of lingering until their next
// save. Manual rows stay.
func (s *IconService) Deactivate(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Icon{}).Where("id = ?", id).Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("icon_id = ? AND is_auto_assigned = ?", id, true).
			Delete(&models.ClientIconAssignment{}).Error
	})
}

// Restore reactivates an icon and, when it carries a condition, schedules a
// sweep to rebuild its auto rows.
func (s *IconService) Restore(ctx context.Context, id string) error {
	var icon models.Icon
	if err := s.db.WithContext(ctx).First(&icon, "id = ?", id).Error; err != nil {
		return err
	}
	taken, err := s.nameTaken(ctx, icon.CompanyID, icon.Name, icon.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrIconNameTaken
	}
	if err := s.db.WithContext(ctx).Model(&icon).Update("is_active", true).Error; err != nil {
		return err
	}
	if icon.AutoAssignCondition != nil {
		s.reevaluate(ctx, &icon)
	}
	return nil
}

func (s *IconService) reevaluate(ctx context.Context, icon *models.Icon) {
	if _, err := s.autoAssign.ReevaluateIcon(ctx, icon); err != nil {
		s.log.Error("icon reevaluation failed",
			"icon_id", icon.ID, "company_id", icon.CompanyID, "err", err)
	}
}

// nameTaken checks case-insensitive name uniqueness among the tenant's active
// icons, optionally excluding the icon being updated.
func (s *IconService) nameTaken(ctx context.Context, companyID, name, excludeID string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Icon{}).
		Where("company_id = ? AND is_active = ? AND LOWER(name) = LOWER(?)", companyID, true, name)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
