package admin

import (
	"github.com/tagvault/tagvault/internal/http/response"

	"github.com/gin-gonic/gin"
)

// AdvancePrintRunRequest 补印任务状态推进请求
type AdvancePrintRunRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdvancePrintRunStatus 逐级推进补印任务状态
func (h *Handler) AdvancePrintRunStatus(c *gin.Context) {
	runID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AdvancePrintRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	run, err := h.PrintRunService.AdvanceStatus(runID, req.Status)
	if err != nil {
		respondServiceError(c, err, "print run status update failed")
		return
	}
	response.Success(c, run)
}
