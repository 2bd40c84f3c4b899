package service

import (
	"context"
	"time"

	"github.com/tagvault/tagvault/internal/cache"
	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/repository"
)

const (
	overviewCacheKey = "inventory:overview"
	overviewCacheTTL = 30 * time.Second
)

// BatchStock 单批次库存切面
type BatchStock struct {
	BatchID       uint             `json:"batch_id"`
	BatchNumber   string           `json:"batch_number"`
	Name          string           `json:"name"`
	Status        string           `json:"status"`
	TotalQuantity int              `json:"total_quantity"`
	UsedQuantity  int              `json:"used_quantity"`
	Available     int64            `json:"available"`
	ByStatus      map[string]int64 `json:"by_status"`
	BySize        map[string]int64 `json:"by_size"` // 仅统计 available 的码
	LowStock      bool             `json:"low_stock"`
	Threshold     int              `json:"threshold"`
}

// InventoryOverview 全局库存总览
type InventoryOverview struct {
	Totals      map[string]int64 `json:"totals"`
	Batches     []BatchStock     `json:"batches"`
	LowStock    []BatchStock     `json:"low_stock"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// InventoryService 库存聚合服务。
// 总览读多写少，走短 TTL 缓存；任何状态流转都同步失效缓存，
// 保证读到的快照至多落后一次流转。
type InventoryService struct {
	codeRepo         repository.CodeRepository
	batchRepo        repository.BatchRepository
	defaultThreshold int
}

// NewInventoryService 创建库存服务
func NewInventoryService(codeRepo repository.CodeRepository, batchRepo repository.BatchRepository, defaultThreshold int) *InventoryService {
	if defaultThreshold <= 0 {
		defaultThreshold = constants.DefaultLowStockThreshold
	}
	return &InventoryService{
		codeRepo:         codeRepo,
		batchRepo:        batchRepo,
		defaultThreshold: defaultThreshold,
	}
}

// GetOverview 获取库存总览，优先读缓存
func (s *InventoryService) GetOverview(ctx context.Context) (*InventoryOverview, error) {
	if cache.Enabled() {
		var cached InventoryOverview
		if hit, err := cache.GetJSON(ctx, overviewCacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	overview, err := s.buildOverview()
	if err != nil {
		return nil, err
	}
	if cache.Enabled() {
		if err := cache.SetJSON(ctx, overviewCacheKey, overview, overviewCacheTTL); err != nil {
			logger.Warnw("overview_cache_write_failed", "error", err)
		}
	}
	return overview, nil
}

// InvalidateOverview 状态流转后同步失效总览缓存
func (s *InventoryService) InvalidateOverview() {
	if s == nil || !cache.Enabled() {
		return
	}
	if err := cache.Del(context.Background(), overviewCacheKey); err != nil {
		logger.Warnw("overview_cache_invalidate_failed", "error", err)
	}
}

func (s *InventoryService) buildOverview() (*InventoryOverview, error) {
	totals, err := s.codeRepo.CountByStatus()
	if err != nil {
		return nil, err
	}
	stockRows, err := s.codeRepo.CountStock()
	if err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.ListAll()
	if err != nil {
		return nil, err
	}

	byBatch := make(map[uint]*BatchStock, len(batches))
	ordered := make([]*BatchStock, 0, len(batches))
	for _, batch := range batches {
		threshold := batch.LowStockThreshold
		if threshold <= 0 {
			threshold = s.defaultThreshold
		}
		stock := &BatchStock{
			BatchID:       batch.ID,
			BatchNumber:   batch.BatchNumber,
			Name:          batch.Name,
			Status:        batch.Status,
			TotalQuantity: batch.TotalQuantity,
			UsedQuantity:  batch.UsedQuantity,
			ByStatus:      make(map[string]int64),
			BySize:        make(map[string]int64),
			Threshold:     threshold,
		}
		byBatch[batch.ID] = stock
		ordered = append(ordered, stock)
	}
	for _, row := range stockRows {
		stock, ok := byBatch[row.BatchID]
		if !ok {
			continue
		}
		stock.ByStatus[row.Status] += row.Total
		if row.Status == constants.CodeStatusAvailable {
			stock.Available += row.Total
			stock.BySize[row.Size] += row.Total
		}
	}

	overview := &InventoryOverview{
		Totals:      totals,
		Batches:     make([]BatchStock, 0, len(ordered)),
		LowStock:    make([]BatchStock, 0),
		GeneratedAt: time.Now(),
	}
	for _, stock := range ordered {
		if stock.Status != constants.BatchStatusDepleted && stock.Available < int64(stock.Threshold) {
			stock.LowStock = true
			overview.LowStock = append(overview.LowStock, *stock)
		}
		overview.Batches = append(overview.Batches, *stock)
	}
	return overview, nil
}

// CheckLowStock 检查单批次可用库存并在低于阈值时告警。
// 告警只是日志信号，接收方（运营通知等）在引擎边界之外。
func (s *InventoryService) CheckLowStock(batchID uint) bool {
	if batchID == 0 {
		return false
	}
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil || batch == nil {
		return false
	}
	threshold := batch.LowStockThreshold
	if threshold <= 0 {
		threshold = s.defaultThreshold
	}

	stockRows, err := s.codeRepo.CountStock()
	if err != nil {
		logger.Warnw("low_stock_check_failed", "batch_id", batchID, "error", err)
		return false
	}
	var available int64
	for _, row := range stockRows {
		if row.BatchID == batchID && row.Status == constants.CodeStatusAvailable {
			available += row.Total
		}
	}
	if available >= int64(threshold) {
		return false
	}

	logger.Warnw("low_stock_alert",
		"batch_id", batch.ID,
		"batch_number", batch.BatchNumber,
		"available", available,
		"threshold", threshold,
	)
	return true
}
