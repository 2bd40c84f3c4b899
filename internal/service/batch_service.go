package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/repository"

	"gorm.io/gorm"
)

const (
	codePrefix           = "TV"
	maxBatchQuantity     = 100000
	maxCodeRegenAttempts = 100
)

// batchStatusOrder 批次生命周期顺序，只允许向前推进
var batchStatusOrder = []string{
	constants.BatchStatusGenerated,
	constants.BatchStatusExporting,
	constants.BatchStatusPrinting,
	constants.BatchStatusPrinted,
	constants.BatchStatusShipped,
	constants.BatchStatusReceived,
	constants.BatchStatusActive,
	constants.BatchStatusDepleted,
}

// BatchService 批次登记服务
type BatchService struct {
	batchRepo repository.BatchRepository
	codeRepo  repository.CodeRepository
	inventory *InventoryService
}

// NewBatchService 创建批次服务
func NewBatchService(batchRepo repository.BatchRepository, codeRepo repository.CodeRepository, inventory *InventoryService) *BatchService {
	return &BatchService{
		batchRepo: batchRepo,
		codeRepo:  codeRepo,
		inventory: inventory,
	}
}

// GenerateBatchInput 批次生成输入
type GenerateBatchInput struct {
	BatchNumber       string
	Name              string
	SizeSpec          string
	Style             string
	Quantity          int
	PricingTiers      models.PricingTiers
	SizePricing       models.SizePricing
	LowStockThreshold int
	CreatedBy         *uint
}

// GenerateBatch 生成批次并批量创建码。
// 码串随机生成并在落库前查重；单个冲突只重生成该码，不中止整个批次。
func (s *BatchService) GenerateBatch(input GenerateBatchInput) (*models.CodeBatch, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: batch name required", ErrValidation)
	}
	sizeSpec := strings.TrimSpace(input.SizeSpec)
	if sizeSpec == "" {
		return nil, fmt.Errorf("%w: size spec required", ErrValidation)
	}
	if input.Quantity <= 0 || input.Quantity > maxBatchQuantity {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", ErrValidation, maxBatchQuantity)
	}
	if input.LowStockThreshold < 0 {
		return nil, fmt.Errorf("%w: low stock threshold must not be negative", ErrValidation)
	}
	if err := ValidatePricingTiers(input.PricingTiers); err != nil {
		return nil, err
	}

	now := time.Now()
	batchNumber := strings.TrimSpace(input.BatchNumber)
	if batchNumber == "" {
		batchNumber = generateBatchNumber(now)
	}
	if existing, err := s.batchRepo.GetByBatchNumber(batchNumber); err != nil {
		return nil, ErrBatchCreateFailed
	} else if existing != nil {
		return nil, fmt.Errorf("%w: batch number already exists", ErrValidation)
	}

	codes, err := s.generateUniqueCodes(batchNumber, input.Quantity)
	if err != nil {
		return nil, err
	}

	batch := &models.CodeBatch{
		BatchNumber:       batchNumber,
		Name:              name,
		SizeSpec:          sizeSpec,
		Style:             strings.TrimSpace(input.Style),
		TotalQuantity:     input.Quantity,
		UsedQuantity:      0,
		Status:            constants.BatchStatusGenerated,
		PricingTiers:      input.PricingTiers,
		SizePricing:       input.SizePricing,
		LowStockThreshold: input.LowStockThreshold,
		CreatedBy:         input.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		batchRepo := s.batchRepo.WithTx(tx)
		codeRepo := s.codeRepo.WithTx(tx)
		if err := batchRepo.Create(batch); err != nil {
			return err
		}
		items := make([]models.Code, 0, len(codes))
		for _, code := range codes {
			items = append(items, models.Code{
				Code:      code,
				BatchID:   batch.ID,
				Status:    constants.CodeStatusAvailable,
				Size:      sizeSpec,
				Style:     batch.Style,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		return codeRepo.CreateBatch(items)
	})
	if err != nil {
		return nil, ErrBatchCreateFailed
	}

	s.inventory.InvalidateOverview()
	logger.Infow("batch_generated",
		"batch_id", batch.ID,
		"batch_number", batch.BatchNumber,
		"quantity", batch.TotalQuantity,
	)
	return batch, nil
}

// generateUniqueCodes 生成指定数量的全局唯一码串。
// 批内去重后再到码表查重，冲突的单个码重新生成。
func (s *BatchService) generateUniqueCodes(batchNumber string, quantity int) ([]string, error) {
	codes := make([]string, 0, quantity)
	seen := make(map[string]struct{}, quantity)
	for len(codes) < quantity {
		code := generateCodeString(batchNumber)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	for attempt := 0; attempt < maxCodeRegenAttempts; attempt++ {
		existing, err := s.codeRepo.ExistingCodes(codes)
		if err != nil {
			return nil, ErrBatchCreateFailed
		}
		if len(existing) == 0 {
			return codes, nil
		}
		for i, code := range codes {
			if _, conflict := existing[code]; !conflict {
				continue
			}
			for {
				regenerated := generateCodeString(batchNumber)
				if _, dup := seen[regenerated]; dup {
					continue
				}
				seen[regenerated] = struct{}{}
				codes[i] = regenerated
				break
			}
		}
	}
	return nil, ErrBatchCreateFailed
}

// GetBatch 获取批次详情
func (s *BatchService) GetBatch(batchID uint) (*models.CodeBatch, error) {
	if batchID == 0 {
		return nil, ErrValidation
	}
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if batch == nil {
		return nil, ErrNotFound
	}
	return batch, nil
}

// ListBatches 获取批次列表
func (s *BatchService) ListBatches(status string, page, pageSize int) ([]models.CodeBatch, int64, error) {
	return s.batchRepo.List(strings.TrimSpace(status), page, pageSize)
}

// AdvanceStatus 推进批次生命周期状态。
// 只允许向前；override 时放开方向限制但保留告警日志。
func (s *BatchService) AdvanceStatus(batchID uint, newStatus string, override bool, actorID *uint) (*models.CodeBatch, error) {
	batch, err := s.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	newStatus = strings.TrimSpace(newStatus)
	newIndex := batchStatusIndex(newStatus)
	if newIndex < 0 {
		return nil, fmt.Errorf("%w: unknown batch status %q", ErrValidation, newStatus)
	}
	currentIndex := batchStatusIndex(batch.Status)
	if newIndex <= currentIndex && !override {
		return nil, ErrInvalidBatchStatus
	}
	if newIndex <= currentIndex {
		logger.Warnw("batch_status_override",
			"batch_id", batch.ID,
			"from", batch.Status,
			"to", newStatus,
			"actor_id", actorID,
		)
	}

	affected, err := s.batchRepo.UpdateStatus(batch.ID, newStatus)
	if err != nil {
		return nil, ErrInvalidBatchStatus
	}
	if affected == 0 {
		return nil, ErrConflict
	}
	batch.Status = newStatus
	s.inventory.InvalidateOverview()
	return batch, nil
}

// RecomputeUsedQuantity 由实测数据重算批次 used_quantity
func (s *BatchService) RecomputeUsedQuantity(batchID uint) error {
	if batchID == 0 {
		return ErrValidation
	}
	return s.batchRepo.RecountUsed(batchID)
}

func batchStatusIndex(status string) int {
	for i, candidate := range batchStatusOrder {
		if candidate == status {
			return i
		}
	}
	return -1
}

func generateBatchNumber(now time.Time) string {
	return fmt.Sprintf("%s-B%s%s", codePrefix, now.Format("060102"), strings.ToUpper(randomHex(3)))
}

func generateCodeString(batchNumber string) string {
	suffix := strings.TrimPrefix(batchNumber, codePrefix+"-")
	return strings.ToUpper(fmt.Sprintf("%s-%s-%s", codePrefix, suffix, randomHex(6)))
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 不可用属于环境故障，直接退化为时间熵会破坏唯一性保证
		panic(errors.New("crypto rand unavailable"))
	}
	return hex.EncodeToString(buf)
}
