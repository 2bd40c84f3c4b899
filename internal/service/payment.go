package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tagvault/tagvault/internal/cache"
)

// PaymentConfirmer 外部支付确认边界。
// 引擎只消费确认信号，不发起扣款；markPurchased 之前必须收到确认。
type PaymentConfirmer interface {
	Confirmed(ctx context.Context, orderID string) (bool, error)
}

// PaymentConfirmations 记录外部支付处理器回调的确认信号。
// 优先写 Redis（多实例共享），Redis 未启用时退化为进程内记录。
type PaymentConfirmations struct {
	ttl time.Duration

	mu    sync.RWMutex
	local map[string]time.Time
}

// NewPaymentConfirmations 创建支付确认记录器
func NewPaymentConfirmations(ttl time.Duration) *PaymentConfirmations {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PaymentConfirmations{
		ttl:   ttl,
		local: make(map[string]time.Time),
	}
}

// Record 记录一笔订单的支付确认
func (p *PaymentConfirmations) Record(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id required", ErrValidation)
	}
	if cache.Enabled() {
		return cache.SetJSON(ctx, confirmationKey(orderID), true, p.ttl)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local[orderID] = time.Now().Add(p.ttl)
	return nil
}

// Confirmed 查询订单是否已确认支付
func (p *PaymentConfirmations) Confirmed(ctx context.Context, orderID string) (bool, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return false, nil
	}
	if cache.Enabled() {
		var confirmed bool
		hit, err := cache.GetJSON(ctx, confirmationKey(orderID), &confirmed)
		if err != nil {
			return false, err
		}
		return hit && confirmed, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	deadline, ok := p.local[orderID]
	return ok && time.Now().Before(deadline), nil
}

func confirmationKey(orderID string) string {
	return "payment:confirmed:" + orderID
}
