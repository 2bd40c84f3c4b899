package main

import (
	"github.com/tagvault/tagvault/internal/config"
	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/provider"
	"github.com/tagvault/tagvault/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	container := provider.NewContainer(cfg)

	// 演示批次：不同尺寸与阶梯定价
	tier1Max := 99
	tier2Max := 499
	plans := []service.GenerateBatchInput{
		{
			Name:     "演示批次-小尺寸吊牌",
			SizeSpec: "30x30",
			Style:    "matte",
			Quantity: 200,
			PricingTiers: models.PricingTiers{
				{MinQty: 1, MaxQty: &tier1Max, UnitPrice: models.NewMoneyFromDecimal(decimal.NewFromFloat(1.20))},
				{MinQty: 100, MaxQty: &tier2Max, UnitPrice: models.NewMoneyFromDecimal(decimal.NewFromFloat(0.95))},
				{MinQty: 500, UnitPrice: models.NewMoneyFromDecimal(decimal.NewFromFloat(0.80))},
			},
			SizePricing: models.SizePricing{
				"30x30": models.NewMoneyFromDecimal(decimal.NewFromFloat(1.0)),
				"50x50": models.NewMoneyFromDecimal(decimal.NewFromFloat(1.5)),
			},
			LowStockThreshold: 30,
		},
		{
			Name:     "演示批次-大尺寸吊牌",
			SizeSpec: "50x50",
			Style:    "glossy",
			Quantity: 100,
			PricingTiers: models.PricingTiers{
				{MinQty: 1, MaxQty: &tier1Max, UnitPrice: models.NewMoneyFromDecimal(decimal.NewFromFloat(2.00))},
				{MinQty: 100, UnitPrice: models.NewMoneyFromDecimal(decimal.NewFromFloat(1.60))},
			},
			LowStockThreshold: 10,
		},
	}

	for _, plan := range plans {
		batch, err := container.BatchService.GenerateBatch(plan)
		if err != nil {
			stdLog.Printf("Failed to create batch %s: %v", plan.Name, err)
			continue
		}
		stdLog.Printf("Created batch %s with %d codes", batch.BatchNumber, batch.TotalQuantity)
	}

	stdLog.Println("Seed data created")
}
