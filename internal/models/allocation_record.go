package models

import (
	"time"
)

// AllocationRecord 分配流水表。只追加，不更新不删除；
// 竞争失败、非法流转等失败尝试同样落一条 is_successful=false 的记录。
type AllocationRecord struct {
	ID             uint      `gorm:"primarykey" json:"id"`             // 主键
	CodeID         uint      `gorm:"index;not null" json:"code_id"`    // 码ID
	Action         string    `gorm:"index;not null" json:"action"`     // 动作（reserve/assign/release/reprint/purchase/damage/report_lost/restore/cancel/expire）
	PreviousStatus string    `gorm:"not null" json:"previous_status"`  // 流转前状态
	NewStatus      string    `gorm:"not null" json:"new_status"`       // 流转后状态
	BusinessID     *uint     `gorm:"index" json:"business_id,omitempty"` // 商家ID
	FunnelID       *uint     `json:"funnel_id,omitempty"`              // 漏斗ID
	ActorID        *uint     `gorm:"index" json:"actor_id,omitempty"`  // 操作者ID（管理员或系统）
	Reason         string    `gorm:"type:text" json:"reason"`          // 备注原因
	IsSuccessful   bool      `gorm:"index;not null" json:"is_successful"` // 是否成功
	CreatedAt      time.Time `gorm:"index" json:"created_at"`          // 创建时间
}

// TableName 指定表名
func (AllocationRecord) TableName() string {
	return "allocation_records"
}
