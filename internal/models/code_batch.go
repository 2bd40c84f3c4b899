package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// PricingTier 批次阶梯定价（按数量区间）
type PricingTier struct {
	MinQty    int   `json:"min_qty"`           // 区间下界（含）
	MaxQty    *int  `json:"max_qty,omitempty"` // 区间上界（含），nil 表示无上界
	UnitPrice Money `json:"unit_price"`        // 单价
}

// PricingTiers 阶梯定价列表，JSON 列存储
type PricingTiers []PricingTier

// Value 实现 driver.Valuer 接口
func (p PricingTiers) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan 实现 sql.Scanner 接口
func (p *PricingTiers) Scan(value interface{}) error {
	if value == nil {
		*p = PricingTiers{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if text, textOK := value.(string); textOK {
			bytes = []byte(text)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, p)
}

// SizePricing 尺寸价格系数（尺寸标签 -> 乘数）
type SizePricing map[string]Money

// Value 实现 driver.Valuer 接口
func (s SizePricing) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan 实现 sql.Scanner 接口
func (s *SizePricing) Scan(value interface{}) error {
	if value == nil {
		*s = SizePricing{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if text, textOK := value.(string); textOK {
			bytes = []byte(text)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, s)
}

// CodeBatch 实体码生产批次表。批次生命周期只前进不回退，
// 管理员显式覆盖除外（覆盖会被审计）。
type CodeBatch struct {
	ID                uint         `gorm:"primarykey" json:"id"`                    // 主键
	BatchNumber       string       `gorm:"uniqueIndex;not null" json:"batch_number"` // 批次号（人类可读，唯一）
	Name              string       `gorm:"not null" json:"name"`                    // 批次名称
	SizeSpec          string       `gorm:"not null" json:"size_spec"`               // 物理尺寸规格
	Style             string       `json:"style"`                                   // 物理样式
	TotalQuantity     int          `gorm:"not null" json:"total_quantity"`          // 总数量
	UsedQuantity      int          `gorm:"not null;default:0" json:"used_quantity"` // 已用数量（assigned+purchased，事务内重算）
	Status            string       `gorm:"index;not null" json:"status"`            // 生命周期状态
	PricingTiers      PricingTiers `gorm:"type:json" json:"pricing_tiers"`          // 阶梯定价
	SizePricing       SizePricing  `gorm:"type:json" json:"size_pricing"`           // 尺寸价格系数
	LowStockThreshold int          `gorm:"not null;default:0" json:"low_stock_threshold"` // 低库存阈值（0 表示使用全局配置）
	CreatedBy         *uint        `gorm:"index" json:"created_by,omitempty"`       // 创建管理员ID
	CreatedAt         time.Time    `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt         time.Time    `gorm:"index" json:"updated_at"`                 // 更新时间
}

// TableName 指定表名
func (CodeBatch) TableName() string {
	return "code_batches"
}
