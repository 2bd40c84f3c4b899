package service

import (
	"github.com/golang-jwt/jwt/v5"
)

// ActorClaims 调用方身份令牌声明。
// 令牌由外部身份系统签发，这里只解析校验，不负责签发与续期。
type ActorClaims struct {
	ActorID    uint   `json:"actor_id"`
	Role       string `json:"role"`                  // admin / business / system
	BusinessID uint   `json:"business_id,omitempty"` // role=business 时必填
	jwt.RegisteredClaims
}
