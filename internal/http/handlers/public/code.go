package public

import (
	"strings"

	"github.com/tagvault/tagvault/internal/http/response"

	"github.com/gin-gonic/gin"
)

// LookupCode 按码串查询单码状态（惰性过期判定后的新鲜状态）
func (h *Handler) LookupCode(c *gin.Context) {
	codeStr := strings.TrimSpace(c.Query("code"))
	if codeStr == "" {
		respondError(c, response.CodeBadRequest, "code query param required", nil)
		return
	}

	code, err := h.AllocationService.GetCodeByString(codeStr)
	if err != nil {
		respondAllocationError(c, err)
		return
	}
	response.Success(c, code)
}
