package public

import (
	"strconv"

	handlershared "github.com/tagvault/tagvault/internal/http/handlers/shared"
	"github.com/tagvault/tagvault/internal/http/response"
	"github.com/tagvault/tagvault/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePrintRunRequest 补印请求
type CreatePrintRunRequest struct {
	CodeID   uint `json:"code_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"required"`
}

// CreatePrintRun 为当前商家的码创建补印任务
func (h *Handler) CreatePrintRun(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	var req CreatePrintRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	run, err := h.PrintRunService.CreatePrintRun(service.CreatePrintRunInput{
		CodeID:     req.CodeID,
		BusinessID: businessID,
		Quantity:   req.Quantity,
		ActorID:    getActorID(c),
	})
	if err != nil {
		respondAllocationError(c, err)
		return
	}
	response.Success(c, run)
}

// ListPrintRuns 分页查询当前商家的补印任务
func (h *Handler) ListPrintRuns(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	runs, total, err := h.PrintRunService.ListPrintRuns(businessID, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch print runs failed", err)
		return
	}
	response.SuccessWithPage(c, runs, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: handlershared.TotalPages(total, pageSize),
	})
}
