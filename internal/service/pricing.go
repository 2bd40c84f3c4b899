package service

import (
	"fmt"
	"strings"

	"github.com/tagvault/tagvault/internal/models"

	"github.com/shopspring/decimal"
)

// ValidatePricingTiers 校验阶梯定价：区间升序、不重叠、
// 自首档下界起连续覆盖，末档必须无上界。
func ValidatePricingTiers(tiers models.PricingTiers) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: pricing tiers required", ErrValidation)
	}
	for i, tier := range tiers {
		if tier.MinQty < 1 {
			return fmt.Errorf("%w: tier %d min_qty must be at least 1", ErrValidation, i)
		}
		if tier.UnitPrice.Decimal.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: tier %d unit_price must be positive", ErrValidation, i)
		}
		if tier.MaxQty != nil && *tier.MaxQty < tier.MinQty {
			return fmt.Errorf("%w: tier %d max_qty below min_qty", ErrValidation, i)
		}
		if i > 0 {
			prev := tiers[i-1]
			if prev.MaxQty == nil {
				return fmt.Errorf("%w: unbounded tier %d must be last", ErrValidation, i-1)
			}
			if tier.MinQty != *prev.MaxQty+1 {
				return fmt.Errorf("%w: tier %d must start at %d", ErrValidation, i, *prev.MaxQty+1)
			}
		}
	}
	if tiers[len(tiers)-1].MaxQty != nil {
		return fmt.Errorf("%w: last tier must be unbounded", ErrValidation)
	}
	return nil
}

// QuoteUnitPrice 按批次定价计算单价：阶梯单价 × 尺寸系数。
// 结果仅作为购买流程的输入，引擎自身不做定价决策。
func QuoteUnitPrice(batch *models.CodeBatch, quantity int, size string) (models.Money, error) {
	if batch == nil {
		return models.Money{}, ErrNotFound
	}
	if quantity < 1 {
		return models.Money{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if err := ValidatePricingTiers(batch.PricingTiers); err != nil {
		return models.Money{}, err
	}
	if quantity < batch.PricingTiers[0].MinQty {
		return models.Money{}, fmt.Errorf("%w: quantity below first tier minimum %d",
			ErrValidation, batch.PricingTiers[0].MinQty)
	}

	var unitPrice decimal.Decimal
	for _, tier := range batch.PricingTiers {
		if quantity < tier.MinQty {
			continue
		}
		if tier.MaxQty != nil && quantity > *tier.MaxQty {
			continue
		}
		unitPrice = tier.UnitPrice.Decimal
		break
	}

	multiplier := decimal.NewFromInt(1)
	trimmedSize := strings.TrimSpace(size)
	if trimmedSize != "" && batch.SizePricing != nil {
		if factor, ok := batch.SizePricing[trimmedSize]; ok {
			multiplier = factor.Decimal
		}
	}
	return models.NewMoneyFromDecimal(unitPrice.Mul(multiplier)), nil
}
