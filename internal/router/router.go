package router

import (
	"fmt"
	"strings"

	"github.com/tagvault/tagvault/internal/cache"
	"github.com/tagvault/tagvault/internal/config"
	"github.com/tagvault/tagvault/internal/constants"
	adminhandlers "github.com/tagvault/tagvault/internal/http/handlers/admin"
	publichandlers "github.com/tagvault/tagvault/internal/http/handlers/public"
	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按商家侧/管理端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "tv"
	}
	redisClient := cache.Client()
	verifyRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:verify", redisPrefix),
		WindowSeconds: cfg.Allocation.Verification.WindowSeconds,
		MaxRequests:   cfg.Allocation.Verification.MaxAttempts,
		Message:       "too many verification attempts",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 扫码验证接口（公开，限流）
		verify := apiV1.Group("/verify")
		{
			verify.POST("/token", RateLimitMiddleware(redisClient, verifyRule, KeyByIP), publicHandler.IssueVerificationToken)
			verify.POST("/confirm", publicHandler.ConfirmVerificationToken)
		}

		// 外部支付处理器回调
		apiV1.POST("/payments/confirmations", publicHandler.PaymentConfirmation)

		// 商家侧接口（需鉴权）
		business := apiV1.Group("")
		business.Use(ActorJWTMiddleware(cfg.JWT.SecretKey), RequireRole(constants.ActorRoleBusiness, constants.ActorRoleSystem))
		{
			business.POST("/codes/reserve", publicHandler.ReserveCode)
			business.POST("/codes/bulk-assign", publicHandler.BulkAssignCodes)
			business.POST("/codes/bulk-release", publicHandler.BulkReleaseCodes)
			business.POST("/codes/:id/assign", publicHandler.AssignCode)
			business.POST("/codes/:id/release", publicHandler.ReleaseCode)
			business.POST("/codes/:id/cancel", publicHandler.CancelReservation)
			business.POST("/codes/:id/claim", publicHandler.ClaimCode)
			business.POST("/codes/:id/purchase", publicHandler.MarkPurchased)
			business.POST("/codes/:id/report", publicHandler.ReportCondition)
			business.GET("/codes/lookup", publicHandler.LookupCode)
			business.GET("/records", publicHandler.ListMyRecords)
			business.POST("/print-runs", publicHandler.CreatePrintRun)
			business.GET("/print-runs", publicHandler.ListPrintRuns)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		admin.Use(ActorJWTMiddleware(cfg.JWT.SecretKey), RequireRole(constants.ActorRoleAdmin))
		{
			// 批次登记
			admin.POST("/batches", adminHandler.CreateBatch)
			admin.GET("/batches", adminHandler.ListBatches)
			admin.GET("/batches/:id", adminHandler.GetBatch)
			admin.POST("/batches/:id/status", adminHandler.AdvanceBatchStatus)
			admin.POST("/batches/:id/recount", adminHandler.RecountBatch)
			admin.GET("/batches/:id/codes", adminHandler.ListBatchCodes)

			// 码管理
			admin.POST("/codes/:id/restore", adminHandler.RestoreCode)
			admin.GET("/codes/:id/history", adminHandler.GetCodeHistory)

			// 库存与回收
			admin.GET("/inventory/overview", adminHandler.GetInventoryOverview)
			admin.POST("/reservations/sweep", adminHandler.SweepReservations)

			// 补印任务
			admin.POST("/print-runs/:id/status", adminHandler.AdvancePrintRunStatus)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
