package admin

import (
	"strconv"

	handlershared "github.com/tagvault/tagvault/internal/http/handlers/shared"
	"github.com/tagvault/tagvault/internal/http/response"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateBatchRequest 批次生成请求
type CreateBatchRequest struct {
	BatchNumber       string              `json:"batch_number"`
	Name              string              `json:"name" binding:"required"`
	SizeSpec          string              `json:"size_spec" binding:"required"`
	Style             string              `json:"style"`
	Quantity          int                 `json:"quantity" binding:"required"`
	PricingTiers      models.PricingTiers `json:"pricing_tiers" binding:"required"`
	SizePricing       models.SizePricing  `json:"size_pricing"`
	LowStockThreshold int                 `json:"low_stock_threshold"`
}

// CreateBatch 生成批次并批量创建码
func (h *Handler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	batch, err := h.BatchService.GenerateBatch(service.GenerateBatchInput{
		BatchNumber:       req.BatchNumber,
		Name:              req.Name,
		SizeSpec:          req.SizeSpec,
		Style:             req.Style,
		Quantity:          req.Quantity,
		PricingTiers:      req.PricingTiers,
		SizePricing:       req.SizePricing,
		LowStockThreshold: req.LowStockThreshold,
		CreatedBy:         getAdminID(c),
	})
	if err != nil {
		respondServiceError(c, err, "batch create failed")
		return
	}
	response.Success(c, batch)
}

// ListBatches 分页查询批次
func (h *Handler) ListBatches(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	batches, total, err := h.BatchService.ListBatches(c.Query("status"), page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch batches failed", err)
		return
	}
	response.SuccessWithPage(c, batches, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: handlershared.TotalPages(total, pageSize),
	})
}

// GetBatch 查询批次详情
func (h *Handler) GetBatch(c *gin.Context) {
	batchID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	batch, err := h.BatchService.GetBatch(batchID)
	if err != nil {
		respondServiceError(c, err, "fetch batch failed")
		return
	}
	response.Success(c, batch)
}

// AdvanceBatchStatusRequest 批次状态推进请求
type AdvanceBatchStatusRequest struct {
	Status   string `json:"status" binding:"required"`
	Override bool   `json:"override"`
}

// AdvanceBatchStatus 推进批次生命周期状态
func (h *Handler) AdvanceBatchStatus(c *gin.Context) {
	batchID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AdvanceBatchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	batch, err := h.BatchService.AdvanceStatus(batchID, req.Status, req.Override, getAdminID(c))
	if err != nil {
		respondServiceError(c, err, "batch status update failed")
		return
	}
	response.Success(c, batch)
}

// RecountBatch 按码表实测数据重算批次 used_quantity
func (h *Handler) RecountBatch(c *gin.Context) {
	batchID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.BatchService.RecomputeUsedQuantity(batchID); err != nil {
		respondServiceError(c, err, "recount failed")
		return
	}
	batch, err := h.BatchService.GetBatch(batchID)
	if err != nil {
		respondServiceError(c, err, "fetch batch failed")
		return
	}
	response.Success(c, batch)
}

// ListBatchCodes 分页查询批次内的码
func (h *Handler) ListBatchCodes(c *gin.Context) {
	batchID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	codes, total, err := h.AllocationService.ListCodes(batchID, c.Query("status"), page, pageSize)
	if err != nil {
		respondServiceError(c, err, "fetch codes failed")
		return
	}
	response.SuccessWithPage(c, codes, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: handlershared.TotalPages(total, pageSize),
	})
}
