package main

import (
	"log"
	"time"

	"github.com/safecommunity/guardianai/api"
	"github.com/safecommunity/guardianai/configs"
	"github.com/safecommunity/guardianai/database"
	"github.com/safecommunity/guardianai/pkg/moderation"
	"github.com/safecommunity/guardianai/pkg/notify"
	"github.com/safecommunity/guardianai/pkg/signal"
	"github.com/safecommunity/guardianai/pkg/trust"
	"github.com/safecommunity/guardianai/pkg/utils"
	"github.com/safecommunity/guardianai/pkg/verdict"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 加载配置
	cfg, err := configs.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化JWT
	utils.InitJWT(cfg)

	// 初始化数据库连接
	if err := database.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 初始化内容分析提供商
	provider, err := signal.NewProvider(signal.ProviderConfig{
		Type:      signal.ProviderType(cfg.Provider.Type),
		APIKey:    cfg.Provider.APIKey,
		ProjectID: cfg.Provider.ProjectID,
	})
	if err != nil {
		log.Fatalf("Failed to initialize analysis provider: %v", err)
	}
	log.Printf("Using analysis provider: %s", provider.Name())

	// 信号归一化器，带内容哈希缓存
	mod := cfg.Moderation
	normalizer := signal.NewNormalizer(mod.HarmfulMarkers, mod.ImageFloor)
	normalizer.SetCache(signal.NewSignalCache(10000, time.Hour))

	// 裁决策略与信誉账本
	policy := verdict.NewPolicy(mod.RejectThreshold, mod.ReviewThreshold, mod.HarmfulLabels)
	ledger := trust.NewLedger(database.DB, policy, mod.BanWarningThreshold, mod.AppealWaitDays, mod.HighSeverityThreshold)

	// 人工审核队列
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	reviewQueue := notify.NewRedisReviewQueue(redisClient, cfg.Redis.ReviewStream)

	orchestrator := moderation.NewOrchestrator(
		database.DB,
		provider,
		normalizer,
		policy,
		ledger,
		reviewQueue,
		time.Duration(mod.AnalysisTimeoutSeconds)*time.Second,
	)

	// 创建Gin实例
	router := gin.Default()

	// 设置路由
	api.SetupRouter(router, orchestrator, ledger)

	// 启动服务器
	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
