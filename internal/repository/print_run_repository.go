package repository

import (
	"errors"
	"time"

	"github.com/tagvault/tagvault/internal/models"

	"gorm.io/gorm"
)

// PrintRunRepository 打印任务数据访问接口
type PrintRunRepository interface {
	Create(run *models.PrintRun) error
	GetByID(id uint) (*models.PrintRun, error)
	ListByBusiness(businessID uint, page, pageSize int) ([]models.PrintRun, int64, error)
	UpdateStatus(runID uint, expectedStatus, newStatus string) (int64, error)
	WithTx(tx *gorm.DB) PrintRunRepository
}

// GormPrintRunRepository GORM 实现
type GormPrintRunRepository struct {
	db *gorm.DB
}

// NewPrintRunRepository 创建打印任务仓库
func NewPrintRunRepository(db *gorm.DB) *GormPrintRunRepository {
	return &GormPrintRunRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPrintRunRepository) WithTx(tx *gorm.DB) PrintRunRepository {
	if tx == nil {
		return r
	}
	return &GormPrintRunRepository{db: tx}
}

// Create 创建打印任务
func (r *GormPrintRunRepository) Create(run *models.PrintRun) error {
	if run == nil {
		return errors.New("print run is nil")
	}
	return r.db.Create(run).Error
}

// GetByID 根据 ID 获取打印任务
func (r *GormPrintRunRepository) GetByID(id uint) (*models.PrintRun, error) {
	var run models.PrintRun
	if err := r.db.First(&run, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListByBusiness 按商家获取打印任务列表
func (r *GormPrintRunRepository) ListByBusiness(businessID uint, page, pageSize int) ([]models.PrintRun, int64, error) {
	if businessID == 0 {
		return nil, 0, errors.New("invalid business id")
	}
	query := r.db.Model(&models.PrintRun{}).Where("business_id = ?", businessID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.PrintRun
	if err := applyPagination(query, page, pageSize).Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateStatus 条件推进打印任务状态
func (r *GormPrintRunRepository) UpdateStatus(runID uint, expectedStatus, newStatus string) (int64, error) {
	if runID == 0 || newStatus == "" {
		return 0, errors.New("invalid print run status update")
	}
	result := r.db.Model(&models.PrintRun{}).
		Where("id = ? AND status = ?", runID, expectedStatus).
		Updates(map[string]interface{}{
			"status":     newStatus,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
