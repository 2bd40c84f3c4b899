package models

import (
	"time"
)

// PrintRun 打印任务表。记录对已分配码的实体（重）打印请求；
// 打印失败不回滚码本身的 assigned 状态。
type PrintRun struct {
	ID         uint      `gorm:"primarykey" json:"id"`              // 主键
	CodeID     uint      `gorm:"index;not null" json:"code_id"`     // 码ID
	BusinessID uint      `gorm:"index;not null" json:"business_id"` // 商家ID
	Size       string    `gorm:"not null" json:"size"`              // 打印尺寸
	Style      string    `json:"style"`                             // 打印样式
	Quantity   int       `gorm:"not null" json:"quantity"`          // 打印份数
	Status     string    `gorm:"index;not null" json:"status"`      // 状态（requested/queued/completed）
	CreatedAt  time.Time `gorm:"index" json:"created_at"`           // 创建时间
	UpdatedAt  time.Time `json:"updated_at"`                        // 更新时间
}

// TableName 指定表名
func (PrintRun) TableName() string {
	return "print_runs"
}
