package repository

import (
	"errors"
	"time"

	"github.com/tagvault/tagvault/internal/models"

	"gorm.io/gorm"
)

// AllocationRecordRepository 分配流水数据访问接口。只追加，无更新删除。
type AllocationRecordRepository interface {
	Create(record *models.AllocationRecord) error
	ListByCode(codeID uint) ([]models.AllocationRecord, error)
	ListByBusiness(businessID uint, from, to time.Time, page, pageSize int) ([]models.AllocationRecord, int64, error)
	WithTx(tx *gorm.DB) AllocationRecordRepository
}

// GormAllocationRecordRepository GORM 实现
type GormAllocationRecordRepository struct {
	db *gorm.DB
}

// NewAllocationRecordRepository 创建分配流水仓库
func NewAllocationRecordRepository(db *gorm.DB) *GormAllocationRecordRepository {
	return &GormAllocationRecordRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAllocationRecordRepository) WithTx(tx *gorm.DB) AllocationRecordRepository {
	if tx == nil {
		return r
	}
	return &GormAllocationRecordRepository{db: tx}
}

// Create 追加一条分配流水
func (r *GormAllocationRecordRepository) Create(record *models.AllocationRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	return r.db.Create(record).Error
}

// ListByCode 按码查询流水，新记录在前
func (r *GormAllocationRecordRepository) ListByCode(codeID uint) ([]models.AllocationRecord, error) {
	if codeID == 0 {
		return nil, errors.New("invalid code id")
	}
	var items []models.AllocationRecord
	if err := r.db.Where("code_id = ?", codeID).
		Order("id desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListByBusiness 按商家与时间范围查询流水，新记录在前
func (r *GormAllocationRecordRepository) ListByBusiness(businessID uint, from, to time.Time, page, pageSize int) ([]models.AllocationRecord, int64, error) {
	if businessID == 0 {
		return nil, 0, errors.New("invalid business id")
	}
	query := r.db.Model(&models.AllocationRecord{}).Where("business_id = ?", businessID)
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("created_at <= ?", to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.AllocationRecord
	if err := applyPagination(query, page, pageSize).Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
