package public

import (
	handlershared "github.com/tagvault/tagvault/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getBusinessID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "business_id")
}

// getActorID 读取操作者 ID，缺失时返回 nil（不拦截请求）
func getActorID(c *gin.Context) *uint {
	value, exists := c.Get("actor_id")
	if !exists {
		return nil
	}
	if id, ok := value.(uint); ok && id > 0 {
		return &id
	}
	return nil
}
