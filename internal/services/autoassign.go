package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/biurosoft/backoffice/internal/conditions"
	"github.com/biurosoft/backoffice/internal/models"
	"github.com/biurosoft/backoffice/internal/tasks"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncError classifies a failed assignment synchronization for one client.
// The client mutation that triggered the sync must log it and carry on: a
// client save never fails because icon sync did.
type SyncError struct {
	ClientID  string
	CompanyID string
	Stage     string
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("auto-assign sync failed for client %s (company %s) during %s: %v",
		e.ClientID, e.CompanyID, e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// assignmentConflict makes assignment inserts a no-op when the (client, icon)
// pair already exists. Two evaluators reaching the same "should create"
// conclusion concurrently resolve to one row without a constraint error, and
// a manual row for the pair is never duplicated.
var assignmentConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "client_id"}, {Name: "icon_id"}},
	DoNothing: true,
}

// AutoAssignService keeps the client/icon assignment table consistent with
// the auto-assign conditions stored on icons. All mutation of auto rows goes
// through here; manual rows are owned by AssignmentService and left alone.
type AutoAssignService struct {
	db        *gorm.DB
	log       *slog.Logger
	runner    *tasks.Runner
	batchSize int
}

func NewAutoAssignService(db *gorm.DB, log *slog.Logger, runner *tasks.Runner, batchSize int) *AutoAssignService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &AutoAssignService{db: db, log: log, runner: runner, batchSize: batchSize}
}

// EvaluateAndAssign reconciles one client's auto assignments against every
// active condition-bearing icon of its tenant, inside a single transaction.
// Idempotent: rerunning it against unchanged data leaves the table as-is,
// so a failed sync self-heals on the next client save.
func (s *AutoAssignService) EvaluateAndAssign(ctx context.Context, client *models.Client) error {
	stage := "load-icons"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var icons []models.Icon
		if err := tx.Where("company_id = ? AND is_active = ? AND auto_assign_condition IS NOT NULL",
			client.CompanyID, true).Find(&icons).Error; err != nil {
			return err
		}

		matching := make([]string, 0, len(icons))
		for i := range icons {
			if conditions.Evaluate(client, icons[i].AutoAssignCondition) {
				matching = append(matching, icons[i].ID)
			}
		}

		stage = "reconcile"
		if len(matching) == 0 {
			// Nothing matches anymore (possibly the last condition was just
			// cleared): drop every auto row the client still carries.
			return tx.Where("client_id = ? AND is_auto_assigned = ?", client.ID, true).
				Delete(&models.ClientIconAssignment{}).Error
		}

		var existing []models.ClientIconAssignment
		if err := tx.Where("client_id = ?", client.ID).Find(&existing).Error; err != nil {
			return err
		}
		taken := make(map[string]bool, len(existing))
		for _, a := range existing {
			taken[a.IconID] = true
		}

		for _, iconID := range matching {
			if taken[iconID] {
				// Manual row wins the pair; an existing auto row needs nothing.
				continue
			}
			row := models.ClientIconAssignment{ClientID: client.ID, IconID: iconID, IsAutoAssigned: true}
			if err := tx.Clauses(assignmentConflict).Create(&row).Error; err != nil {
				return err
			}
		}

		// One bulk delete for the stale rows; the read-modify-delete loop it
		// replaces was neither atomic nor cheap on wide tenants.
		return tx.Where("client_id = ? AND is_auto_assigned = ? AND icon_id NOT IN ?",
			client.ID, true, matching).Delete(&models.ClientIconAssignment{}).Error
	})
	if err != nil {
		return &SyncError{ClientID: client.ID, CompanyID: client.CompanyID, Stage: stage, Err: err}
	}
	return nil
}

// ReevaluateIcon reacts to an icon's condition being created, changed or
// cleared. Clearing is one bulk delete done inline. Otherwise the tenant-wide
// sweep is handed to the background runner so the triggering request is not
// blocked; the returned handle lets tests wait for completion and is nil when
// no sweep was scheduled.
func (s *AutoAssignService) ReevaluateIcon(ctx context.Context, icon *models.Icon) (*tasks.Handle, error) {
	if icon.AutoAssignCondition == nil {
		err := s.db.WithContext(ctx).
			Where("icon_id = ? AND is_auto_assigned = ?", icon.ID, true).
			Delete(&models.ClientIconAssignment{}).Error
		if err != nil {
			return nil, fmt.Errorf("clear auto assignments for icon %s: %w", icon.ID, err)
		}
		return nil, nil
	}

	ic := *icon // the sweep outlives the caller's request
	handle := s.runner.Submit("icon-sweep:"+icon.ID, func(ctx context.Context) error {
		s.sweepIcon(ctx, &ic)
		return nil
	})
	return handle, nil
}

// sweepIcon walks every active client of the icon's tenant in fixed-size
// pages and reconciles each client's single assignment row. Per-client
// failures are logged and skipped so one bad record cannot abort the sweep.
func (s *AutoAssignService) sweepIcon(ctx context.Context, icon *models.Icon) {
	log := s.log.With("icon_id", icon.ID, "company_id", icon.CompanyID)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Client{}).
		Where("company_id = ? AND is_active = ?", icon.CompanyID, true).
		Count(&total).Error; err != nil {
		log.Error("icon sweep aborted: counting clients failed", "err", err)
		return
	}

	processed := 0
	for offset := 0; int64(offset) < total; offset += s.batchSize {
		var batch []models.Client
		if err := s.db.WithContext(ctx).Preload("Company").
			Where("company_id = ? AND is_active = ?", icon.CompanyID, true).
			Order("id").Limit(s.batchSize).Offset(offset).
			Find(&batch).Error; err != nil {
			log.Error("icon sweep aborted: loading client page failed", "offset", offset, "err", err)
			return
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			if err := s.reconcileOne(ctx, &batch[i], icon); err != nil {
				log.Error("client reconciliation failed, sweep continues",
					"client_id", batch[i].ID, "err", err)
			}
		}
		processed += len(batch)
		// Yield between pages so a large tenant does not starve other work.
		runtime.Gosched()
	}
	log.Info("icon sweep finished", "clients_processed", processed)
}

func (s *AutoAssignService) reconcileOne(ctx context.Context, client *models.Client, icon *models.Icon) error {
	if conditions.Evaluate(client, icon.AutoAssignCondition) {
		row := models.ClientIconAssignment{ClientID: client.ID, IconID: icon.ID, IsAutoAssigned: true}
		return s.db.WithContext(ctx).Clauses(assignmentConflict).Create(&row).Error
	}
	return s.db.WithContext(ctx).
		Where("client_id = ? AND icon_id = ? AND is_auto_assigned = ?", client.ID, icon.ID, true).
		Delete(&models.ClientIconAssignment{}).Error
}

// ResyncTenant schedules a sweep for every active condition-bearing icon of
// one tenant.
func (s *AutoAssignService) ResyncTenant(ctx context.Context, companyID string) error {
	var icons []models.Icon
	if err := s.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ? AND auto_assign_condition IS NOT NULL", companyID, true).
		Find(&icons).Error; err != nil {
		return fmt.Errorf("load icons for resync of company %s: %w", companyID, err)
	}
	for i := range icons {
		if _, err := s.ReevaluateIcon(ctx, &icons[i]); err != nil {
			return err
		}
	}
	return nil
}

// ResyncAll schedules sweeps across all tenants. Both synchronizer operations
// are idempotent with respect to current data, so the nightly run converges
// the assignment table onto the current rules and heals anything a logged
// failure left behind.
func (s *AutoAssignService) ResyncAll(ctx context.Context) error {
	var companyIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Icon{}).
		Where("is_active = ? AND auto_assign_condition IS NOT NULL", true).
		Distinct().Pluck("company_id", &companyIDs).Error; err != nil {
		return fmt.Errorf("list companies for resync: %w", err)
	}
	for _, id := range companyIDs {
		if err := s.ResyncTenant(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
