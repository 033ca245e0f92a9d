package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/biurosoft/backoffice/internal/models"
	"gorm.io/gorm"
)

var (
	ErrMissingCompany = errors.New("missing_company_id")
	ErrMissingName    = errors.New("missing_name")
)

// ClientInput carries the writable fields of a client record.
type ClientInput struct {
	CompanyID string
	Name      string
	Email     string
	Phone     string
	NIP       string
	REGON     string
	PKDCode   string

	EmploymentStatus models.EmploymentStatus
	VATStatus        models.VATStatus
	TaxScheme        models.TaxScheme
	ZUSScheme        models.ZUSScheme
	GTUCodes         []string

	Notes            string
	CooperationStart *time.Time
}

// ClientService is the CRUD entry point for client records. Create, Update
// and Restore run the icon auto-assign pass afterwards; its failures are
// logged, never returned.
type ClientService struct {
	db         *gorm.DB
	log        *slog.Logger
	autoAssign *AutoAssignService
}

func NewClientService(db *gorm.DB, log *slog.Logger, autoAssign *AutoAssignService) *ClientService {
	return &ClientService{db: db, log: log, autoAssign: autoAssign}
}

func (s *ClientService) Create(ctx context.Context, in ClientInput) (*models.Client, error) {
	if in.CompanyID == "" {
		return nil, ErrMissingCompany
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrMissingName
	}
	client := models.Client{
		CompanyID:        in.CompanyID,
		Name:             in.Name,
		Email:            in.Email,
		Phone:            in.Phone,
		NIP:              in.NIP,
		REGON:            in.REGON,
		PKDCode:          in.PKDCode,
		EmploymentStatus: in.EmploymentStatus,
		VATStatus:        in.VATStatus,
		TaxScheme:        in.TaxScheme,
		ZUSScheme:        in.ZUSScheme,
		GTUCodes:         in.GTUCodes,
		Notes:            in.Notes,
		CooperationStart: in.CooperationStart,
		IsActive:         true,
	}
	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, err
	}
	s.syncAssignments(ctx, client.ID)
	return &client, nil
}

func (s *ClientService) Update(ctx context.Context, id string, in ClientInput) (*models.Client, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrMissingName
	}
	var client models.Client
	if err := s.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	client.Name = in.Name
	client.Email = in.Email
	client.Phone = in.Phone
	client.NIP = in.NIP
	client.REGON = in.REGON
	client.PKDCode = in.PKDCode
	client.EmploymentStatus = in.EmploymentStatus
	client.VATStatus = in.VATStatus
	client.TaxScheme = in.TaxScheme
	client.ZUSScheme = in.ZUSScheme
	client.GTUCodes = in.GTUCodes
	client.Notes = in.Notes
	client.CooperationStart = in.CooperationStart
	if err := s.db.WithContext(ctx).Save(&client).Error; err != nil {
		return nil, err
	}
	s.syncAssignments(ctx, client.ID)
	return &client, nil
}

func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := s.db.WithContext(ctx).Preload("Company").First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// List returns the tenant's active clients, optionally filtered by a name or
// NIP fragment, with offset pagination and the total for the filter.
func (s *ClientService) List(ctx context.Context, companyID, query string, skip, take int) ([]models.Client, int64, error) {
	if take <= 0 || take > 200 {
		take = 20
	}
	db := s.db.WithContext(ctx).Model(&models.Client{}).
		Where("company_id = ? AND is_active = ?", companyID, true)
	if query != "" {
		db = db.Where("name LIKE ? OR nip LIKE ?", "%"+query+"%", "%"+query+"%")
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var clients []models.Client
	if err := db.Order("name").Limit(take).Offset(skip).Find(&clients).Error; err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

// SoftDelete deactivates a client; its assignment rows stay so Restore brings
// the tags back.
func (s *ClientService) SoftDelete(ctx context.Context, id string) error {
	return s.setActive(ctx, id, false)
}

// Restore reactivates a client and re-runs the auto-assign pass, since the
// rules may have changed while it was inactive.
func (s *ClientService) Restore(ctx context.Context, id string) error {
	if err := s.setActive(ctx, id, true); err != nil {
		return err
	}
	s.syncAssignments(ctx, id)
	return nil
}

func (s *ClientService) setActive(ctx context.Context, id string, active bool) error {
	res := s.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// HardDelete removes the client and all of its assignment rows irreversibly.
func (s *ClientService) HardDelete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&models.ClientIconAssignment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Client{}).Error
	})
}

// syncAssignments reloads the client with its company (rules may reference
// company.* fields) and runs the auto-assign pass. Failures are logged and
// swallowed: the surrounding client mutation already succeeded and the next
// save or the nightly resync will converge the rows.
func (s *ClientService) syncAssignments(ctx context.Context, clientID string) {
	var client models.Client
	if err := s.db.WithContext(ctx).Preload("Company").First(&client, "id = ?", clientID).Error; err != nil {
		s.log.Error("auto-assign skipped: reloading client failed", "client_id", clientID, "err", err)
		return
	}
	if err := s.autoAssign.EvaluateAndAssign(ctx, &client); err != nil {
		s.log.Error("auto-assign failed after client save",
			"client_id", client.ID, "company_id", client.CompanyID, "err", err)
	}
}
