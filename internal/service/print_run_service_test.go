package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tagvault/tagvault/internal/cache"
	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupPrintRunServiceTest(t *testing.T) (*PrintRunService, *AuditService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:print_run_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Code{},
		&models.PrintRun{},
		&models.AllocationRecord{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cache.SetClient(nil, "")

	codeRepo := repository.NewCodeRepository(db)
	printRunRepo := repository.NewPrintRunRepository(db)
	audit := NewAuditService(repository.NewAllocationRecordRepository(db), codeRepo)
	return NewPrintRunService(printRunRepo, codeRepo, audit), audit, db
}

func createPrintRunCode(t *testing.T, db *gorm.DB, codeStr, status string, owner uint) *models.Code {
	t.Helper()
	now := time.Now()
	code := &models.Code{
		Code:      codeStr,
		BatchID:   1,
		Status:    status,
		Size:      "50x50",
		Style:     "glossy",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if owner != 0 {
		code.OwnerBusinessID = &owner
	}
	if err := db.Create(code).Error; err != nil {
		t.Fatalf("create code failed: %v", err)
	}
	return code
}

func TestCreatePrintRunForOwnedCode(t *testing.T) {
	svc, audit, db := setupPrintRunServiceTest(t)
	code := createPrintRunCode(t, db, "TV-PR-001", constants.CodeStatusAssigned, 21)

	run, err := svc.CreatePrintRun(CreatePrintRunInput{
		CodeID:     code.ID,
		BusinessID: 21,
		Quantity:   50,
	})
	if err != nil {
		t.Fatalf("create print run failed: %v", err)
	}
	if run.Status != constants.PrintRunStatusRequested {
		t.Fatalf("status want requested got %s", run.Status)
	}
	if run.Size != "50x50" || run.Style != "glossy" {
		t.Fatalf("print run must inherit code physical spec, got %s/%s", run.Size, run.Style)
	}

	// 补印不改变码本身的状态与归属
	reloaded := &models.Code{}
	if err := db.First(reloaded, code.ID).Error; err != nil {
		t.Fatalf("reload code failed: %v", err)
	}
	if reloaded.Status != constants.CodeStatusAssigned {
		t.Fatalf("code status must stay assigned, got %s", reloaded.Status)
	}

	records, err := audit.History(code.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(records) != 1 || records[0].Action != constants.AllocationActionReprint {
		t.Fatalf("expected one reprint record, got %+v", records)
	}
	want := fmt.Sprintf("print run %d, quantity %d", run.ID, run.Quantity)
	if records[0].Reason != want {
		t.Fatalf("reason want %q got %q", want, records[0].Reason)
	}
}

func TestCreatePrintRunWrongOwner(t *testing.T) {
	svc, _, db := setupPrintRunServiceTest(t)
	code := createPrintRunCode(t, db, "TV-PR-002", constants.CodeStatusPurchased, 21)

	_, err := svc.CreatePrintRun(CreatePrintRunInput{
		CodeID:     code.ID,
		BusinessID: 99,
		Quantity:   10,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got: %v", err)
	}
}

func TestCreatePrintRunRequiresAssignedCode(t *testing.T) {
	svc, _, db := setupPrintRunServiceTest(t)
	code := createPrintRunCode(t, db, "TV-PR-003", constants.CodeStatusAvailable, 0)

	_, err := svc.CreatePrintRun(CreatePrintRunInput{
		CodeID:     code.ID,
		BusinessID: 21,
		Quantity:   10,
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got: %v", err)
	}
}

func TestCreatePrintRunRejectsInvalidInput(t *testing.T) {
	svc, _, db := setupPrintRunServiceTest(t)
	code := createPrintRunCode(t, db, "TV-PR-004", constants.CodeStatusAssigned, 21)

	cases := []struct {
		name  string
		input CreatePrintRunInput
	}{
		{name: "missing code id", input: CreatePrintRunInput{BusinessID: 21, Quantity: 10}},
		{name: "missing business id", input: CreatePrintRunInput{CodeID: code.ID, Quantity: 10}},
		{name: "zero quantity", input: CreatePrintRunInput{CodeID: code.ID, BusinessID: 21}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreatePrintRun(tc.input); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got: %v", err)
			}
		})
	}
}

func TestAdvancePrintRunStatusStepwise(t *testing.T) {
	svc, _, db := setupPrintRunServiceTest(t)
	code := createPrintRunCode(t, db, "TV-PR-005", constants.CodeStatusAssigned, 21)
	run, err := svc.CreatePrintRun(CreatePrintRunInput{
		CodeID:     code.ID,
		BusinessID: 21,
		Quantity:   25,
	})
	if err != nil {
		t.Fatalf("create print run failed: %v", err)
	}

	// 不允许跳级
	if _, err := svc.AdvanceStatus(run.ID, constants.PrintRunStatusCompleted); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state on skip, got: %v", err)
	}

	queued, err := svc.AdvanceStatus(run.ID, constants.PrintRunStatusQueued)
	if err != nil {
		t.Fatalf("advance to queued failed: %v", err)
	}
	if queued.Status != constants.PrintRunStatusQueued {
		t.Fatalf("status want queued got %s", queued.Status)
	}
	completed, err := svc.AdvanceStatus(run.ID, constants.PrintRunStatusCompleted)
	if err != nil {
		t.Fatalf("advance to completed failed: %v", err)
	}
	if completed.Status != constants.PrintRunStatusCompleted {
		t.Fatalf("status want completed got %s", completed.Status)
	}

	// 终态之后不再接受流转
	if _, err := svc.AdvanceStatus(run.ID, constants.PrintRunStatusQueued); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state after completion, got: %v", err)
	}
}

func TestListPrintRunsByBusiness(t *testing.T) {
	svc, _, db := setupPrintRunServiceTest(t)
	code := createPrintRunCode(t, db, "TV-PR-006", constants.CodeStatusAssigned, 21)
	other := createPrintRunCode(t, db, "TV-PR-007", constants.CodeStatusAssigned, 22)

	for i := 0; i < 3; i++ {
		if _, err := svc.CreatePrintRun(CreatePrintRunInput{CodeID: code.ID, BusinessID: 21, Quantity: 10 + i}); err != nil {
			t.Fatalf("create run %d failed: %v", i, err)
		}
	}
	if _, err := svc.CreatePrintRun(CreatePrintRunInput{CodeID: other.ID, BusinessID: 22, Quantity: 5}); err != nil {
		t.Fatalf("create other run failed: %v", err)
	}

	runs, total, err := svc.ListPrintRuns(21, 1, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("total want 3 got %d", total)
	}
	if len(runs) != 2 {
		t.Fatalf("page size want 2 got %d", len(runs))
	}
	for _, run := range runs {
		if run.BusinessID != 21 {
			t.Fatalf("listing leaked business %d", run.BusinessID)
		}
	}

	if _, _, err := svc.ListPrintRuns(0, 1, 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got: %v", err)
	}
}
