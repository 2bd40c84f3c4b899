package repository

import (
	"errors"
	"time"

	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/models"

	"gorm.io/gorm"
)

// BatchRepository 批次数据访问接口
type BatchRepository interface {
	Create(batch *models.CodeBatch) error
	GetByID(id uint) (*models.CodeBatch, error)
	GetByBatchNumber(batchNumber string) (*models.CodeBatch, error)
	List(status string, page, pageSize int) ([]models.CodeBatch, int64, error)
	ListAll() ([]models.CodeBatch, error)
	UpdateStatus(batchID uint, status string) (int64, error)
	RecountUsed(batchID uint) error
	WithTx(tx *gorm.DB) BatchRepository
}

// GormBatchRepository GORM 实现
type GormBatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository 创建批次仓库
func NewBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBatchRepository) WithTx(tx *gorm.DB) BatchRepository {
	if tx == nil {
		return r
	}
	return &GormBatchRepository{db: tx}
}

// Create 创建批次
func (r *GormBatchRepository) Create(batch *models.CodeBatch) error {
	if batch == nil {
		return errors.New("batch is nil")
	}
	return r.db.Create(batch).Error
}

// GetByID 根据 ID 获取批次
func (r *GormBatchRepository) GetByID(id uint) (*models.CodeBatch, error) {
	var batch models.CodeBatch
	if err := r.db.First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetByBatchNumber 根据批次号获取批次
func (r *GormBatchRepository) GetByBatchNumber(batchNumber string) (*models.CodeBatch, error) {
	if batchNumber == "" {
		return nil, nil
	}
	var batch models.CodeBatch
	if err := r.db.Where("batch_number = ?", batchNumber).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// List 获取批次列表
func (r *GormBatchRepository) List(status string, page, pageSize int) ([]models.CodeBatch, int64, error) {
	query := r.db.Model(&models.CodeBatch{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.CodeBatch
	if err := applyPagination(query, page, pageSize).Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll 获取全量批次
func (r *GormBatchRepository) ListAll() ([]models.CodeBatch, error) {
	var items []models.CodeBatch
	if err := r.db.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateStatus 更新批次生命周期状态
func (r *GormBatchRepository) UpdateStatus(batchID uint, status string) (int64, error) {
	if batchID == 0 || status == "" {
		return 0, errors.New("invalid batch status update")
	}
	result := r.db.Model(&models.CodeBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// RecountUsed 由码表实测数据重算 used_quantity。
// 单条 UPDATE + 子查询，保证与触发它的状态流转处于同一事务。
func (r *GormBatchRepository) RecountUsed(batchID uint) error {
	if batchID == 0 {
		return errors.New("invalid batch id")
	}
	subQuery := r.db.Model(&models.Code{}).
		Select("COUNT(*)").
		Where("batch_id = ? AND status IN ?", batchID,
			[]string{constants.CodeStatusAssigned, constants.CodeStatusPurchased})
	return r.db.Model(&models.CodeBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]interface{}{
			"used_quantity": subQuery,
			"updated_at":    time.Now(),
		}).Error
}
