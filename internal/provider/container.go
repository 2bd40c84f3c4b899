package provider

import (
	"time"

	"github.com/tagvault/tagvault/internal/cache"
	"github.com/tagvault/tagvault/internal/config"
	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/queue"
	"github.com/tagvault/tagvault/internal/repository"
	"github.com/tagvault/tagvault/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	CodeRepo     repository.CodeRepository
	BatchRepo    repository.BatchRepository
	RecordRepo   repository.AllocationRecordRepository
	PrintRunRepo repository.PrintRunRepository

	// Services
	Payments            *service.PaymentConfirmations
	AuditService        *service.AuditService
	InventoryService    *service.InventoryService
	BatchService        *service.BatchService
	AllocationService   *service.AllocationService
	PrintRunService     *service.PrintRunService
	VerificationService *service.VerificationService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.CodeRepo = repository.NewCodeRepository(db)
	c.BatchRepo = repository.NewBatchRepository(db)
	c.RecordRepo = repository.NewAllocationRecordRepository(db)
	c.PrintRunRepo = repository.NewPrintRunRepository(db)
}

func (c *Container) initServices() {
	alloc := c.Config.Allocation

	c.Payments = service.NewPaymentConfirmations(0)
	c.AuditService = service.NewAuditService(c.RecordRepo, c.CodeRepo)
	c.InventoryService = service.NewInventoryService(c.CodeRepo, c.BatchRepo, alloc.LowStockThreshold)
	c.BatchService = service.NewBatchService(c.BatchRepo, c.CodeRepo, c.InventoryService)

	// 队列未启用时传 nil，引擎退化为惰性回收
	var scheduler service.TaskScheduler
	if c.QueueClient.Enabled() {
		scheduler = c.QueueClient
	}
	c.AllocationService = service.NewAllocationService(
		c.CodeRepo,
		c.BatchRepo,
		c.AuditService,
		c.InventoryService,
		c.Payments,
		scheduler,
		service.AllocationOptions{
			ReservationTTL:     time.Duration(alloc.ReservationTTLSeconds) * time.Second,
			MaxReserveAttempts: alloc.MaxReserveAttempts,
		},
	)
	c.PrintRunService = service.NewPrintRunService(c.PrintRunRepo, c.CodeRepo, c.AuditService)
	c.VerificationService = service.NewVerificationService(c.CodeRepo, alloc.Verification)
}
