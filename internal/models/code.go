package models

import (
	"time"
)

// Code 实体码库存表。码一经生成不再物理删除，
// 准终态（damaged/lost）只能通过管理员恢复操作回到 owned_unassigned。
type Code struct {
	ID                    uint       `gorm:"primarykey" json:"id"`                     // 主键
	Code                  string     `gorm:"uniqueIndex;not null" json:"code"`         // 可扫描码串（全局唯一，不可变）
	BatchID               uint       `gorm:"index;not null" json:"batch_id"`           // 所属批次ID（不可变）
	Status                string     `gorm:"index;not null" json:"status"`             // 状态（available/reserved/owned_unassigned/assigned/purchased/damaged/lost）
	OwnerBusinessID       *uint      `gorm:"index" json:"owner_business_id,omitempty"` // 归属商家ID（离开 available 后必填）
	FunnelID              *uint      `gorm:"index" json:"funnel_id,omitempty"`         // 绑定漏斗ID（仅 assigned 状态非空）
	Size                  string     `gorm:"index" json:"size"`                        // 物理尺寸（随批次写入）
	Style                 string     `gorm:"index" json:"style"`                       // 物理样式（随批次写入）
	ReservedAt            *time.Time `gorm:"index" json:"reserved_at,omitempty"`       // 预约时间
	ReservationExpiresAt  *time.Time `gorm:"index" json:"reservation_expires_at,omitempty"` // 预约过期时间
	AssignedAt            *time.Time `json:"assigned_at,omitempty"`                    // 分配时间
	PurchasedAt           *time.Time `json:"purchased_at,omitempty"`                   // 购买时间
	PurchasePrice         *Money     `gorm:"type:decimal(20,2)" json:"purchase_price,omitempty"` // 成交价格
	VerificationToken     *string    `gorm:"index" json:"-"`                           // 所有权验证令牌（短时效）
	VerificationExpiresAt *time.Time `json:"-"`                                        // 验证令牌过期时间
	CreatedAt             time.Time  `gorm:"index" json:"created_at"`                  // 创建时间
	UpdatedAt             time.Time  `gorm:"index" json:"updated_at"`                  // 更新时间

	Batch *CodeBatch `gorm:"foreignKey:BatchID" json:"batch,omitempty"` // 批次信息
}

// TableName 指定表名
func (Code) TableName() string {
	return "codes"
}

// ReservationExpired 判断预约是否已过期
func (c *Code) ReservationExpired(now time.Time) bool {
	if c == nil || c.ReservationExpiresAt == nil {
		return false
	}
	return now.After(*c.ReservationExpiresAt)
}
