package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tagvault/tagvault/internal/cache"
	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupBatchServiceTest(t *testing.T) (*BatchService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:batch_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.CodeBatch{},
		&models.Code{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	cache.SetClient(nil, "")

	codeRepo := repository.NewCodeRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	inventory := NewInventoryService(codeRepo, batchRepo, 20)
	return NewBatchService(batchRepo, codeRepo, inventory), db
}

func validPricingTiers() models.PricingTiers {
	tier1Max := 99
	return models.PricingTiers{
		{MinQty: 1, MaxQty: &tier1Max, UnitPrice: models.NewMoneyFromDecimal(decimal.RequireFromString("1.20"))},
		{MinQty: 100, UnitPrice: models.NewMoneyFromDecimal(decimal.RequireFromString("0.95"))},
	}
}

func TestGenerateBatchCreatesUniqueCodes(t *testing.T) {
	svc, db := setupBatchServiceTest(t)

	batch, err := svc.GenerateBatch(GenerateBatchInput{
		Name:         "春季吊牌批次",
		SizeSpec:     "30x30",
		Style:        "matte",
		Quantity:     25,
		PricingTiers: validPricingTiers(),
	})
	if err != nil {
		t.Fatalf("generate batch failed: %v", err)
	}
	if batch.Status != constants.BatchStatusGenerated {
		t.Fatalf("status want generated got %s", batch.Status)
	}
	if batch.BatchNumber == "" || !strings.HasPrefix(batch.BatchNumber, "TV-B") {
		t.Fatalf("unexpected batch number %q", batch.BatchNumber)
	}
	if batch.TotalQuantity != 25 || batch.UsedQuantity != 0 {
		t.Fatalf("quantities wrong: total=%d used=%d", batch.TotalQuantity, batch.UsedQuantity)
	}

	var codes []models.Code
	if err := db.Where("batch_id = ?", batch.ID).Find(&codes).Error; err != nil {
		t.Fatalf("load codes failed: %v", err)
	}
	if len(codes) != 25 {
		t.Fatalf("code count want 25 got %d", len(codes))
	}
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if code.Status != constants.CodeStatusAvailable {
			t.Fatalf("code %s status want available got %s", code.Code, code.Status)
		}
		if code.Size != "30x30" || code.Style != "matte" {
			t.Fatalf("code %s must inherit batch physical spec", code.Code)
		}
		if _, dup := seen[code.Code]; dup {
			t.Fatalf("duplicate code string %s", code.Code)
		}
		seen[code.Code] = struct{}{}
	}
}

func TestGenerateBatchRejectsDuplicateNumber(t *testing.T) {
	svc, _ := setupBatchServiceTest(t)

	input := GenerateBatchInput{
		BatchNumber:  "TV-B-DUP01",
		Name:         "重复批次号",
		SizeSpec:     "30x30",
		Quantity:     2,
		PricingTiers: validPricingTiers(),
	}
	if _, err := svc.GenerateBatch(input); err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	_, err := svc.GenerateBatch(input)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got: %v", err)
	}
}

func TestGenerateBatchRejectsInvalidInput(t *testing.T) {
	svc, _ := setupBatchServiceTest(t)

	cases := []struct {
		name  string
		input GenerateBatchInput
	}{
		{name: "missing name", input: GenerateBatchInput{SizeSpec: "30x30", Quantity: 1, PricingTiers: validPricingTiers()}},
		{name: "missing size", input: GenerateBatchInput{Name: "x", Quantity: 1, PricingTiers: validPricingTiers()}},
		{name: "zero quantity", input: GenerateBatchInput{Name: "x", SizeSpec: "30x30", PricingTiers: validPricingTiers()}},
		{name: "no pricing tiers", input: GenerateBatchInput{Name: "x", SizeSpec: "30x30", Quantity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.GenerateBatch(tc.input); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got: %v", err)
			}
		})
	}
}

func TestAdvanceBatchStatusForwardOnly(t *testing.T) {
	svc, _ := setupBatchServiceTest(t)
	batch, err := svc.GenerateBatch(GenerateBatchInput{
		Name:         "生命周期批次",
		SizeSpec:     "30x30",
		Quantity:     1,
		PricingTiers: validPricingTiers(),
	})
	if err != nil {
		t.Fatalf("generate batch failed: %v", err)
	}

	// 允许向前跳级
	updated, err := svc.AdvanceStatus(batch.ID, constants.BatchStatusPrinted, false, nil)
	if err != nil {
		t.Fatalf("advance to printed failed: %v", err)
	}
	if updated.Status != constants.BatchStatusPrinted {
		t.Fatalf("status want printed got %s", updated.Status)
	}

	// 回退必须显式 override
	if _, err := svc.AdvanceStatus(batch.ID, constants.BatchStatusExporting, false, nil); !errors.Is(err, ErrInvalidBatchStatus) {
		t.Fatalf("expected invalid batch status, got: %v", err)
	}
	adminID := uint(1)
	updated, err = svc.AdvanceStatus(batch.ID, constants.BatchStatusExporting, true, &adminID)
	if err != nil {
		t.Fatalf("override rollback failed: %v", err)
	}
	if updated.Status != constants.BatchStatusExporting {
		t.Fatalf("status want exporting got %s", updated.Status)
	}

	// 未知状态拒绝
	if _, err := svc.AdvanceStatus(batch.ID, "melted", false, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got: %v", err)
	}
}

func TestRecomputeUsedQuantity(t *testing.T) {
	svc, db := setupBatchServiceTest(t)
	batch, err := svc.GenerateBatch(GenerateBatchInput{
		Name:         "重算批次",
		SizeSpec:     "30x30",
		Quantity:     4,
		PricingTiers: validPricingTiers(),
	})
	if err != nil {
		t.Fatalf("generate batch failed: %v", err)
	}

	owner := uint(5)
	var ids []uint
	if err := db.Model(&models.Code{}).
		Where("batch_id = ?", batch.ID).
		Order("id asc").
		Limit(2).
		Pluck("id", &ids).Error; err != nil {
		t.Fatalf("pick codes failed: %v", err)
	}
	if err := db.Model(&models.Code{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":            constants.CodeStatusAssigned,
			"owner_business_id": owner,
		}).Error; err != nil {
		t.Fatalf("seed assigned codes failed: %v", err)
	}

	if err := svc.RecomputeUsedQuantity(batch.ID); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	reloaded, err := svc.GetBatch(batch.ID)
	if err != nil {
		t.Fatalf("get batch failed: %v", err)
	}
	if reloaded.UsedQuantity != 2 {
		t.Fatalf("used quantity want 2 got %d", reloaded.UsedQuantity)
	}
}
