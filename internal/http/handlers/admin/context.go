package admin

import (
	"github.com/gin-gonic/gin"
)

// getAdminID 读取管理员操作者 ID，缺失时返回 nil
func getAdminID(c *gin.Context) *uint {
	value, exists := c.Get("actor_id")
	if !exists {
		return nil
	}
	if id, ok := value.(uint); ok && id > 0 {
		return &id
	}
	return nil
}
