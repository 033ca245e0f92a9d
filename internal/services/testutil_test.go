package services

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/biurosoft/backoffice/internal/conditions"
	"github.com/biurosoft/backoffice/internal/models"
	"github.com/biurosoft/backoffice/internal/tasks"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Company{}, &models.Client{}, &models.Icon{}, &models.ClientIconAssignment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newAutoAssign wires the synchronizer with an inline runner so sweeps finish
// before the triggering call returns.
func newAutoAssign(db *gorm.DB, batchSize int) *AutoAssignService {
	log := testLogger()
	runner := tasks.NewRunner(log, 1, tasks.Inline())
	return NewAutoAssignService(db, log, runner, batchSize)
}

func seedCompany(t *testing.T, db *gorm.DB, name string) models.Company {
	c := models.Company{Name: name, IsActive: true}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	return c
}

func seedClient(t *testing.T, db *gorm.DB, companyID string, mut func(*models.Client)) models.Client {
	c := models.Client{CompanyID: companyID, Name: "Zakład Testowy", VATStatus: models.VATExempt, IsActive: true}
	if mut != nil {
		mut(&c)
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

func seedIcon(t *testing.T, db *gorm.DB, companyID, name string, cond *conditions.Condition) models.Icon {
	ic := models.Icon{CompanyID: companyID, Name: name, IconType: models.IconTypeLucide, AutoAssignCondition: cond, IsActive: true}
	if err := db.Create(&ic).Error; err != nil {
		t.Fatalf("seed icon: %v", err)
	}
	return ic
}

func seedAssignment(t *testing.T, db *gorm.DB, clientID, iconID string, auto bool) models.ClientIconAssignment {
	a := models.ClientIconAssignment{ClientID: clientID, IconID: iconID, IsAutoAssigned: auto}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return a
}

func vatActiveCond() *conditions.Condition {
	return &conditions.Condition{Field: "vatStatus", Operator: conditions.OpEquals, Value: "vat_active"}
}

func assignmentsFor(t *testing.T, db *gorm.DB, clientID string) []models.ClientIconAssignment {
	var rows []models.ClientIconAssignment
	if err := db.Where("client_id = ?", clientID).Find(&rows).Error; err != nil {
		t.Fatalf("load assignments: %v", err)
	}
	return rows
}

func countIconRows(t *testing.T, db *gorm.DB, iconID string, autoOnly bool) int64 {
	q := db.Model(&models.ClientIconAssignment{}).Where("icon_id = ?", iconID)
	if autoOnly {
		q = q.Where("is_auto_assigned = ?", true)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count assignments: %v", err)
	}
	return n
}
