package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/biurosoft/backoffice/internal/conditions"
	"github.com/biurosoft/backoffice/internal/models"
	"gorm.io/gorm"
)

func newClientService(db *gorm.DB) *ClientService {
	return NewClientService(db, testLogger(), newAutoAssign(db, 0))
}

func TestClientCreateRunsAutoAssign(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := newClientService(db)
	co := seedCompany(t, db, "Biuro Alfa")
	icon := seedIcon(t, db, co.ID, "VAT", vatActiveCond())
	// A rule on a nested company field proves the client is evaluated with
	// its company loaded.
	nested := seedIcon(t, db, co.ID, "Alfa", &conditions.Condition{
		Field: "company.name", Operator: conditions.OpContains, Value: "alfa",
	})

	client, err := svc.Create(context.Background(), ClientInput{
		CompanyID: co.ID, Name: "Zakład Nowak", VATStatus: models.VATActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rows := assignmentsFor(t, db, client.ID)
	if len(rows) != 2 {
		t.Fatalf("expected rows for %s and %s, got %+v", icon.Name, nested.Name, rows)
	}
	for _, r := range rows {
		if !r.IsAutoAssigned {
			t.Fatalf("expected auto rows, got %+v", r)
		}
	}
}

func TestClientCreateValidation(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := newClientService(db)
	if _, err := svc.Create(context.Background(), ClientInput{Name: "X"}); !errors.Is(err, ErrMissingCompany) {
		t.Fatalf("expected ErrMissingCompany, got %v", err)
	}
	co := seedCompany(t, db, "Biuro Alfa")
	if _, err := svc.Create(context.Background(), ClientInput{CompanyID: co.ID, Name: " "}); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
}

func TestClientUpdateReconcilesAssignments(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := newClientService(db)
	co := seedCompany(t, db, "Biuro Alfa")
	icon := seedIcon(t, db, co.ID, "VAT", vatActiveCond())

	client, err := svc.Create(context.Background(), ClientInput{
		CompanyID: co.ID, Name: "Zakład Nowak", VATStatus: models.VATActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n := countIconRows(t, db, icon.ID, true); n != 1 {
		t.Fatalf("expected auto row after create, got %d", n)
	}

	if _, err := svc.Update(context.Background(), client.ID, ClientInput{
		CompanyID: co.ID, Name: "Zakład Nowak", VATStatus: models.VATExempt,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := countIconRows(t, db, icon.ID, true); n != 0 {
		t.Fatalf("auto row must follow the updated data, got %d", n)
	}
}

func TestClientSaveSurvivesSyncFailure(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := newClientService(db)
	co := seedCompany(t, db, "Biuro Alfa")
	seedIcon(t, db, co.ID, "VAT", vatActiveCond())

	if err := db.Migrator().DropTable(&models.ClientIconAssignment{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	client, err := svc.Create(context.Background(), ClientInput{
		CompanyID: co.ID, Name: "Zakład Nowak", VATStatus: models.VATActive,
	})
	if err != nil {
		t.Fatalf("client save must not fail because icon sync did: %v", err)
	}
	var reloaded models.Client
	if err := db.First(&reloaded, "id = ?", client.ID).Error; err != nil {
		t.Fatalf("client row missing: %v", err)
	}
}

func TestClientSoftDeleteAndRestore(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := newClientService(db)
	co := seedCompany(t, db, "Biuro Alfa")
	icon := seedIcon(t, db, co.ID, "VAT", vatActiveCond())
	client, err := svc.Create(context.Background(), ClientInput{
		CompanyID: co.ID, Name: "Zakład Nowak", VATStatus: models.VATActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.SoftDelete(context.Background(), client.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	var reloaded models.Client
	if err := db.First(&reloaded, "id = ?", client.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.IsActive {
		t.Fatalf("client still active after soft delete")
	}

	// Rows drift while the client is inactive; restore reconverges them.
	if err := db.Where("client_id = ?", client.ID).Delete(&models.ClientIconAssignment{}).Error; err != nil {
		t.Fatalf("delete rows: %v", err)
	}
	if err := svc.Restore(context.Background(), client.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n := countIconRows(t, db, icon.ID, true); n != 1 {
		t.Fatalf("restore must re-run auto-assign, got %d rows", n)
	}

	if err := svc.SoftDelete(context.Background(), "no-such-id"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestClientHardDeleteRemovesAssignments(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := newClientService(db)
	co := seedCompany(t, db, "Biuro Alfa")
	icon := seedIcon(t, db, co.ID, "VAT", nil)
	client := seedClient(t, db, co.ID, nil)
	seedAssignment(t, db, client.ID, icon.ID, false)

	if err := svc.HardDelete(context.Background(), client.ID); err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	var n int64
	if err := db.Model(&models.Client{}).Where("id = ?", client.ID).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("client row survived hard delete (n=%d err=%v)", n, err)
	}
	if rows := assignmentsFor(t, db, client.ID); len(rows) != 0 {
		t.Fatalf("assignment rows survived hard delete: %+v", rows)
	}
}

func TestClientListFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := newClientService(db)
	co := seedCompany(t, db, "Biuro Alfa")
	other := seedCompany(t, db, "Biuro Beta")

	for i := 0; i < 25; i++ {
		seedClient(t, db, co.ID, func(c *models.Client) { c.Name = fmt.Sprintf("Klient %02d", i) })
	}
	seedClient(t, db, co.ID, func(c *models.Client) { c.Name = "Nieaktywny"; c.IsActive = false })
	seedClient(t, db, other.ID, func(c *models.Client) { c.Name = "Klient 00" })

	page, total, err := svc.List(context.Background(), co.ID, "", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 25 {
		t.Fatalf("expected 25 active clients in tenant, got %d", total)
	}
	if len(page) != 10 {
		t.Fatalf("expected page of 10, got %d", len(page))
	}

	last, _, err := svc.List(context.Background(), co.ID, "", 20, 10)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(last) != 5 {
		t.Fatalf("expected final page of 5, got %d", len(last))
	}

	filtered, total, err := svc.List(context.Background(), co.ID, "Klient 0", 0, 50)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if total != 10 || len(filtered) != 10 {
		t.Fatalf("expected 10 matches for prefix, got total=%d len=%d", total, len(filtered))
	}
}

func TestClientListMatchesNIPFragment(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := newClientService(db)
	co := seedCompany(t, db, "Biuro Alfa")
	seedClient(t, db, co.ID, func(c *models.Client) { c.Name = "Zakład A"; c.NIP = "1234567890" })
	seedClient(t, db, co.ID, func(c *models.Client) { c.Name = "Zakład B"; c.NIP = "9876543210" })

	rows, total, err := svc.List(context.Background(), co.ID, "123456", 0, 10)
	if err != nil {
		t.Fatalf("list by nip: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].NIP != "1234567890" {
		t.Fatalf("expected the one matching client, got total=%d rows=%+v", total, rows)
	}

	// The mapped column must be nip on both tables, matching the SQL
	// migrations and the raw filter in List.
	var n int64
	if err := db.Raw("SELECT COUNT(*) FROM clients WHERE nip = ?", "1234567890").Scan(&n).Error; err != nil || n != 1 {
		t.Fatalf("clients.nip lookup: n=%d err=%v", n, err)
	}
	other := models.Company{Name: "Biuro Beta", NIP: "5555555555", IsActive: true}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	if err := db.Raw("SELECT COUNT(*) FROM companies WHERE nip = ?", "5555555555").Scan(&n).Error; err != nil || n != 1 {
		t.Fatalf("companies.nip lookup: n=%d err=%v", n, err)
	}
}
