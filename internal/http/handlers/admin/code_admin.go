package admin

import (
	"github.com/tagvault/tagvault/internal/http/response"

	"github.com/gin-gonic/gin"
)

// RestoreCodeRequest 码恢复请求
type RestoreCodeRequest struct {
	Reason string `json:"reason"`
}

// RestoreCode 管理员把 damaged/lost 的码恢复为商家自有库存
func (h *Handler) RestoreCode(c *gin.Context) {
	codeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req RestoreCodeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid request body", err)
			return
		}
	}

	if err := h.AllocationService.AdminRestore(codeID, req.Reason, getAdminID(c)); err != nil {
		respondServiceError(c, err, "restore failed")
		return
	}
	response.SuccessWithMsg(c, "restored", nil)
}

// GetCodeHistory 按码查询完整分配流水
func (h *Handler) GetCodeHistory(c *gin.Context) {
	codeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	records, err := h.AuditService.History(codeID)
	if err != nil {
		respondServiceError(c, err, "fetch history failed")
		return
	}
	response.Success(c, records)
}

// GetInventoryOverview 查询全局库存总览
func (h *Handler) GetInventoryOverview(c *gin.Context) {
	overview, err := h.InventoryService.GetOverview(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "fetch inventory failed", err)
		return
	}
	response.Success(c, overview)
}

// SweepReservations 手动触发过期预约回收
func (h *Handler) SweepReservations(c *gin.Context) {
	reclaimed, err := h.AllocationService.SweepExpired(0)
	if err != nil {
		respondError(c, response.CodeInternal, "sweep failed", err)
		return
	}
	requestLog(c).Infow("manual_sweep_done", "reclaimed", reclaimed)
	response.Success(c, gin.H{"reclaimed": reclaimed})
}
