package public

import (
	"strconv"

	"github.com/tagvault/tagvault/internal/http/response"
	"github.com/tagvault/tagvault/internal/service"

	"github.com/gin-gonic/gin"
)

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}

// ReserveCodeRequest 预约请求。漏斗在确认分配时才绑定
type ReserveCodeRequest struct {
	BatchID uint   `json:"batch_id"`
	Size    string `json:"size"`
	Style   string `json:"style"`
}

// ReserveCode 为当前商家预约一枚码
func (h *Handler) ReserveCode(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	var req ReserveCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	code, err := h.AllocationService.ReserveCode(service.ReserveCodeInput{
		BusinessID: businessID,
		BatchID:    req.BatchID,
		Size:       req.Size,
		Style:      req.Style,
		ActorID:    getActorID(c),
	})
	if err != nil {
		respondReserveError(c, err)
		return
	}
	response.Success(c, code)
}

// AssignCodeRequest 确认分配请求
type AssignCodeRequest struct {
	FunnelID *uint `json:"funnel_id"`
}

// AssignCode 确认分配预约中的码
func (h *Handler) AssignCode(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	codeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AssignCodeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid request body", err)
			return
		}
	}

	code, err := h.AllocationService.AssignCode(service.AssignCodeInput{
		CodeID:     codeID,
		BusinessID: businessID,
		FunnelID:   req.FunnelID,
		ActorID:    getActorID(c),
	})
	if err != nil {
		respondAllocationError(c, err)
		return
	}
	response.Success(c, code)
}

// ReleaseCodeRequest 释放请求
type ReleaseCodeRequest struct {
	Reason string `json:"reason"`
}

// ReleaseCode 解除漏斗绑定，码退回商家自有库存
func (h *Handler) ReleaseCode(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	codeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ReleaseCodeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid request body", err)
			return
		}
	}

	err := h.AllocationService.ReleaseCode(service.ReleaseCodeInput{
		CodeID:     codeID,
		BusinessID: businessID,
		Reason:     req.Reason,
		ActorID:    getActorID(c),
	})
	if err != nil {
		respondAllocationError(c, err)
		return
	}
	response.SuccessWithMsg(c, "released", nil)
}

// CancelReservation 取消当前商家的预约
func (h *Handler) CancelReservation(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	codeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.AllocationService.CancelReservation(codeID, businessID, getActorID(c)); err != nil {
		respondAllocationError(c, err)
		return
	}
	response.SuccessWithMsg(c, "cancelled", nil)
}

// ClaimCode 认领空闲码作为自有库存
func (h *Handler) ClaimCode(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	codeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	code, err := h.AllocationService.ClaimCode(codeID, businessID, getActorID(c))
	if err != nil {
		respondAllocationError(c, err)
		return
	}
	response.Success(c, code)
}

// BulkAssignRequest 批量分配请求
type BulkAssignRequest struct {
	CodeIDs  []uint `json:"code_ids" binding:"required"`
	FunnelID *uint  `json:"funnel_id"`
}

// BulkAssignCodes 批量确认分配，部分失败不影响其余码
func (h *Handler) BulkAssignCodes(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	var req BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	result, err := h.AllocationService.BulkAssign(service.BulkAssignInput{
		CodeIDs:    req.CodeIDs,
		BusinessID: businessID,
		FunnelID:   req.FunnelID,
		ActorID:    getActorID(c),
	})
	if err != nil {
		respondAllocationError(c, err)
		return
	}
	response.Success(c, result)
}

// BulkReleaseRequest 批量释放请求
type BulkReleaseRequest struct {
	CodeIDs []uint `json:"code_ids" binding:"required"`
	Reason  string `json:"reason"`
}

// BulkReleaseCodes 批量释放
func (h *Handler) BulkReleaseCodes(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	var req BulkReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	result, err := h.AllocationService.BulkRelease(service.BulkReleaseInput{
		CodeIDs:    req.CodeIDs,
		BusinessID: businessID,
		Reason:     req.Reason,
		ActorID:    getActorID(c),
	})
	if err != nil {
		respondAllocationError(c, err)
		return
	}
	response.Success(c, result)
}

// ReportConditionRequest 实物异常上报请求
type ReportConditionRequest struct {
	Condition string `json:"condition" binding:"required"` // damaged / lost
	Reason    string `json:"reason"`
}

// ReportCondition 上报实物损毁或遗失
func (h *Handler) ReportCondition(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	codeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ReportConditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	err := h.AllocationService.ReportCondition(service.ReportConditionInput{
		CodeID:     codeID,
		BusinessID: businessID,
		Condition:  req.Condition,
		Reason:     req.Reason,
		ActorID:    getActorID(c),
	})
	if err != nil {
		respondAllocationError(c, err)
		return
	}
	response.SuccessWithMsg(c, "reported", nil)
}
