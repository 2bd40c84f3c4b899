package repository

import (
	"errors"
	"time"

	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/models"

	"gorm.io/gorm"
)

// CandidateCriteria 候选码筛选条件
type CandidateCriteria struct {
	BatchID uint   // 0 表示不限批次
	Size    string // 空表示不限尺寸
	Style   string // 空表示不限样式
	Limit   int    // 返回候选数量上限
	Now     time.Time
}

// StatusSwap 单码状态条件更新参数。
// 条件在同一条 UPDATE 中求值，这是码状态变更唯一的原子边界。
type StatusSwap struct {
	CodeID          uint
	ExpectedStatus  string
	NewStatus       string
	OwnerBusinessID *uint      // 非空时额外要求归属商家匹配
	ExpiredBefore   *time.Time // 非空时额外要求预约已在该时刻前过期
	Fields          map[string]interface{}
}

// BatchStockCount 按批次/尺寸/状态分组的库存统计行
type BatchStockCount struct {
	BatchID uint
	Size    string
	Status  string
	Total   int64
}

// CodeRepository 码数据访问接口
type CodeRepository interface {
	CreateBatch(items []models.Code) error
	GetByID(id uint) (*models.Code, error)
	GetByCode(code string) (*models.Code, error)
	ListByIDs(ids []uint) ([]models.Code, error)
	ListByBatch(batchID uint, status string, page, pageSize int) ([]models.Code, int64, error)
	FindCandidates(criteria CandidateCriteria) ([]models.Code, error)
	CompareAndSetStatus(swap StatusSwap) (int64, error)
	ExistingCodes(codes []string) (map[string]struct{}, error)
	CountByStatus() (map[string]int64, error)
	CountStock() ([]BatchStockCount, error)
	CountUsedInBatch(batchID uint) (int64, error)
	FindExpiredReservations(now time.Time, limit int) ([]models.Code, error)
	SetVerification(codeID uint, token string, expiresAt time.Time) error
	ClearVerification(codeID uint) error
	GetByVerificationToken(token string) (*models.Code, error)
	WithTx(tx *gorm.DB) CodeRepository
}

// GormCodeRepository GORM 实现
type GormCodeRepository struct {
	db *gorm.DB
}

// NewCodeRepository 创建码仓库
func NewCodeRepository(db *gorm.DB) *GormCodeRepository {
	return &GormCodeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCodeRepository) WithTx(tx *gorm.DB) CodeRepository {
	if tx == nil {
		return r
	}
	return &GormCodeRepository{db: tx}
}

// CreateBatch 批量创建码
func (r *GormCodeRepository) CreateBatch(items []models.Code) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.Create(&items).Error
}

// GetByID 根据 ID 获取码
func (r *GormCodeRepository) GetByID(id uint) (*models.Code, error) {
	var code models.Code
	if err := r.db.First(&code, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// GetByCode 根据码串获取码
func (r *GormCodeRepository) GetByCode(code string) (*models.Code, error) {
	var item models.Code
	if err := r.db.Where("code = ?", code).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListByIDs 按 ID 列表查询码
func (r *GormCodeRepository) ListByIDs(ids []uint) ([]models.Code, error) {
	if len(ids) == 0 {
		return []models.Code{}, nil
	}
	var items []models.Code
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListByBatch 按批次获取码列表
func (r *GormCodeRepository) ListByBatch(batchID uint, status string, page, pageSize int) ([]models.Code, int64, error) {
	if batchID == 0 {
		return nil, 0, errors.New("invalid batch id")
	}
	query := r.db.Model(&models.Code{}).Where("batch_id = ?", batchID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Code
	if err := applyPagination(query, page, pageSize).Order("id asc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// FindCandidates 按确定性顺序查找可预约候选码：
// available 的码，以及预约已过期、尚未回收的 reserved 码。
// 排序固定为 created_at asc, id asc，相同输入必得相同选择。
func (r *GormCodeRepository) FindCandidates(criteria CandidateCriteria) ([]models.Code, error) {
	now := criteria.Now
	if now.IsZero() {
		now = time.Now()
	}
	query := r.db.Model(&models.Code{}).
		Where("status = ? OR (status = ? AND reservation_expires_at IS NOT NULL AND reservation_expires_at < ?)",
			constants.CodeStatusAvailable, constants.CodeStatusReserved, now)
	if criteria.BatchID > 0 {
		query = query.Where("batch_id = ?", criteria.BatchID)
	}
	if criteria.Size != "" {
		query = query.Where("size = ?", criteria.Size)
	}
	if criteria.Style != "" {
		query = query.Where("style = ?", criteria.Style)
	}
	limit := criteria.Limit
	if limit <= 0 {
		limit = 1
	}

	var items []models.Code
	if err := query.Order("created_at asc, id asc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CompareAndSetStatus 单条件更新码状态。
// 期望状态不匹配（或附加条件不满足）时影响行数为 0，由调用方按冲突处理。
func (r *GormCodeRepository) CompareAndSetStatus(swap StatusSwap) (int64, error) {
	if swap.CodeID == 0 || swap.NewStatus == "" {
		return 0, errors.New("invalid status swap")
	}
	query := r.db.Model(&models.Code{}).
		Where("id = ? AND status = ?", swap.CodeID, swap.ExpectedStatus)
	if swap.OwnerBusinessID != nil {
		query = query.Where("owner_business_id = ?", *swap.OwnerBusinessID)
	}
	if swap.ExpiredBefore != nil {
		query = query.Where("reservation_expires_at IS NOT NULL AND reservation_expires_at < ?", *swap.ExpiredBefore)
	}

	updates := map[string]interface{}{
		"status":     swap.NewStatus,
		"updated_at": time.Now(),
	}
	for key, value := range swap.Fields {
		updates[key] = value
	}
	result := query.Updates(updates)
	return result.RowsAffected, result.Error
}

// ExistingCodes 返回已存在的码串集合（批次生成时的冲突探测）
func (r *GormCodeRepository) ExistingCodes(codes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(codes) == 0 {
		return existing, nil
	}
	var rows []string
	if err := r.db.Model(&models.Code{}).
		Where("code IN ?", codes).
		Pluck("code", &rows).Error; err != nil {
		return nil, err
	}
	for _, code := range rows {
		existing[code] = struct{}{}
	}
	return existing, nil
}

// CountByStatus 全局按状态统计
func (r *GormCodeRepository) CountByStatus() (map[string]int64, error) {
	type countRow struct {
		Status string
		Total  int64
	}
	var rows []countRow
	if err := r.db.Model(&models.Code{}).
		Select("status, COUNT(*) as total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Total
	}
	return result, nil
}

// CountStock 按批次/尺寸/状态分组统计
func (r *GormCodeRepository) CountStock() ([]BatchStockCount, error) {
	var rows []BatchStockCount
	if err := r.db.Model(&models.Code{}).
		Select("batch_id, size, status, COUNT(*) as total").
		Group("batch_id, size, status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountUsedInBatch 统计批次内 assigned/purchased 的码数
func (r *GormCodeRepository) CountUsedInBatch(batchID uint) (int64, error) {
	if batchID == 0 {
		return 0, errors.New("invalid batch id")
	}
	var count int64
	if err := r.db.Model(&models.Code{}).
		Where("batch_id = ? AND status IN ?", batchID,
			[]string{constants.CodeStatusAssigned, constants.CodeStatusPurchased}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindExpiredReservations 查找预约已过期的码（兜底扫描用）
func (r *GormCodeRepository) FindExpiredReservations(now time.Time, limit int) ([]models.Code, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []models.Code
	if err := r.db.Where("status = ? AND reservation_expires_at IS NOT NULL AND reservation_expires_at < ?",
		constants.CodeStatusReserved, now).
		Order("reservation_expires_at asc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// SetVerification 写入所有权验证令牌
func (r *GormCodeRepository) SetVerification(codeID uint, token string, expiresAt time.Time) error {
	if codeID == 0 {
		return errors.New("invalid code id")
	}
	return r.db.Model(&models.Code{}).
		Where("id = ?", codeID).
		Updates(map[string]interface{}{
			"verification_token":      token,
			"verification_expires_at": expiresAt,
			"updated_at":              time.Now(),
		}).Error
}

// ClearVerification 清除所有权验证令牌
func (r *GormCodeRepository) ClearVerification(codeID uint) error {
	if codeID == 0 {
		return errors.New("invalid code id")
	}
	return r.db.Model(&models.Code{}).
		Where("id = ?", codeID).
		Updates(map[string]interface{}{
			"verification_token":      nil,
			"verification_expires_at": nil,
			"updated_at":              time.Now(),
		}).Error
}

// GetByVerificationToken 根据验证令牌获取码
func (r *GormCodeRepository) GetByVerificationToken(token string) (*models.Code, error) {
	if token == "" {
		return nil, nil
	}
	var item models.Code
	if err := r.db.Where("verification_token = ?", token).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}
