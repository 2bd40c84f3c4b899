package worker

import (
	"context"
	"encoding/json"

	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/provider"
	"github.com/tagvault/tagvault/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskReservationExpire, c.handleReservationExpire)
	mux.HandleFunc(queue.TaskReservationSweep, c.handleReservationSweep)
	mux.HandleFunc(queue.TaskLowStockAlert, c.handleLowStockAlert)
}

func (c *Consumer) handleReservationExpire(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_reservation_expire_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReservationExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_reservation_expire_unmarshal_failed", "error", err)
		return err
	}
	if payload.CodeID == 0 {
		logger.Debugw("worker_reservation_expire_skip_invalid_payload", "code_id", payload.CodeID)
		return nil
	}
	// 预约已确认或已被惰性回收时条件更新落空，静默结束
	if err := c.AllocationService.ExpireReservation(payload.CodeID); err != nil {
		logger.Warnw("worker_reservation_expire_failed", "code_id", payload.CodeID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleReservationSweep(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_reservation_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReservationSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_reservation_sweep_unmarshal_failed", "error", err)
		return err
	}
	reclaimed, err := c.AllocationService.SweepExpired(payload.Limit)
	if err != nil {
		logger.Warnw("worker_reservation_sweep_failed", "error", err)
		return err
	}
	logger.Debugw("worker_reservation_sweep_done", "reclaimed", reclaimed)
	return nil
}

func (c *Consumer) handleLowStockAlert(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_low_stock_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.LowStockAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_low_stock_unmarshal_failed", "error", err)
		return err
	}
	if payload.BatchID == 0 {
		logger.Debugw("worker_low_stock_skip_invalid_payload", "batch_id", payload.BatchID)
		return nil
	}
	c.InventoryService.CheckLowStock(payload.BatchID)
	return nil
}
