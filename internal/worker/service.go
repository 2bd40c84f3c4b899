package worker

import (
	"context"
	"errors"
	"time"

	"github.com/tagvault/tagvault/internal/config"
	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultSweepInterval = 5 * time.Minute
	sweepBatchLimit      = 200
)

// Service 异步队列服务
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	sweepInterval := defaultSweepInterval
	if consumer.Container != nil && consumer.Config != nil && consumer.Config.Allocation.SweepIntervalSeconds > 0 {
		sweepInterval = time.Duration(consumer.Config.Allocation.SweepIntervalSeconds) * time.Second
	}
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		sweepInterval: sweepInterval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.AllocationService != nil {
		go s.runSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runSweepLoop 周期回收过期预约。延迟任务是主路径，
// 这里兜底投递失败或实例重启丢失的那部分。
func (s *Service) runSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.AllocationService == nil {
		return
	}
	runOnce := func() {
		if _, err := s.consumer.AllocationService.SweepExpired(sweepBatchLimit); err != nil {
			logger.Warnw("worker_sweep_expired_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
