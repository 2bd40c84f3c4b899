package public

import (
	"github.com/tagvault/tagvault/internal/http/response"

	"github.com/gin-gonic/gin"
)

// IssueVerificationTokenRequest 验证令牌签发请求
type IssueVerificationTokenRequest struct {
	Code string `json:"code" binding:"required"`
}

// IssueVerificationToken 扫码换取一次性所有权验证令牌
func (h *Handler) IssueVerificationToken(c *gin.Context) {
	var req IssueVerificationTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	issued, err := h.VerificationService.IssueToken(c.Request.Context(), req.Code, c.ClientIP())
	if err != nil {
		respondVerificationError(c, err)
		return
	}
	response.Success(c, issued)
}

// ConfirmVerificationTokenRequest 验证令牌核销请求
type ConfirmVerificationTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ConfirmVerificationToken 核销验证令牌并返回码的归属信息
func (h *Handler) ConfirmVerificationToken(c *gin.Context) {
	var req ConfirmVerificationTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	code, err := h.VerificationService.ConfirmToken(req.Token)
	if err != nil {
		respondVerificationError(c, err)
		return
	}
	response.Success(c, gin.H{
		"code_id":     code.ID,
		"code":        code.Code,
		"status":      code.Status,
		"business_id": code.OwnerBusinessID,
		"funnel_id":   code.FunnelID,
	})
}
