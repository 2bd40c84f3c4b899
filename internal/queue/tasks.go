package queue

import (
	"encoding/json"

	"github.com/tagvault/tagvault/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskReservationExpire 预约到期回收任务
	TaskReservationExpire = constants.TaskReservationExpire
	// TaskReservationSweep 过期预约兜底扫描任务
	TaskReservationSweep = constants.TaskReservationSweep
	// TaskLowStockAlert 低库存检查任务
	TaskLowStockAlert = constants.TaskLowStockAlert
)

// ReservationExpirePayload 预约到期任务载荷
type ReservationExpirePayload struct {
	CodeID uint `json:"code_id"`
}

// ReservationSweepPayload 兜底扫描任务载荷
type ReservationSweepPayload struct {
	Limit int `json:"limit"`
}

// LowStockAlertPayload 低库存检查任务载荷
type LowStockAlertPayload struct {
	BatchID uint `json:"batch_id"`
}

// NewReservationExpireTask 创建预约到期任务
func NewReservationExpireTask(payload ReservationExpirePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReservationExpire, body), nil
}

// NewReservationSweepTask 创建兜底扫描任务
func NewReservationSweepTask(payload ReservationSweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReservationSweep, body), nil
}

// NewLowStockAlertTask 创建低库存检查任务
func NewLowStockAlertTask(payload LowStockAlertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockAlert, body), nil
}
