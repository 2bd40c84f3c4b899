package public

import "github.com/tagvault/tagvault/internal/provider"

// Handler 商家侧接口处理器入口
// 说明：该处理器仅用于商家与扫码验证侧 API。
type Handler struct {
	*provider.Container
}

// New 创建商家侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
