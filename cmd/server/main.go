package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/peptidepress/internal/config"
	"github.com/peptidepress/internal/db"
	"github.com/peptidepress/internal/handler"
	"github.com/peptidepress/internal/router"
	"github.com/peptidepress/internal/service"
	"github.com/peptidepress/internal/storage"
)

// schedulerInterval 是内置调度循环的到期检查间隔。
const schedulerInterval = time.Minute

func main() {
	// 本地开发时从 .env 读取配置，文件不存在则忽略
	_ = godotenv.Load()
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if err := db.EnsureUser(cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		log.Fatalf("failed to ensure root user: %v", err)
	}

	store, err := storage.NewFS(cfg.UploadDir, cfg.UploadURLPath)
	if err != nil {
		log.Fatalf("failed to initialize image storage: %v", err)
	}

	client := service.NewOpenRouterClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey)
	schedules := service.NewScheduleService(db.DB)
	pipeline := service.NewPipelineService(
		schedules,
		service.NewArticleService(db.DB),
		service.NewCategoryService(db.DB),
		service.NewPeptideService(db.DB),
		service.NewTopicSelector(client, cfg.TextModel),
		service.NewArticleGenerator(client, cfg.TextModel),
		service.NewImageService(client, cfg.ImageModel, store),
		cfg.AuthorName,
		cfg.AuthorRole,
	)

	// 未配置外部 cron 时可用内置调度循环
	if cfg.SchedulerEnabled {
		go runScheduler(pipeline)
	}

	// 设置并运行 Gin 服务器
	api := handler.NewAPI(db.DB, pipeline, schedules, cfg.CronSecret)
	r := router.Setup(api, cfg.SessionSecret, cfg.UploadURLPath, cfg.UploadDir)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}

// runScheduler 周期性检查计划是否到期并执行生成。
// 未到期的检查没有副作用，失败的运行会在下个到期点重试。
func runScheduler(pipeline *service.PipelineService) {
	ticker := time.NewTicker(schedulerInterval)
	defer ticker.Stop()

	for range ticker.C {
		result, err := pipeline.Run(context.Background(), service.RunRequest{})
		if err != nil {
			log.Printf("scheduled generation failed: %v", err)
			continue
		}
		if result.Generated {
			log.Printf("scheduled generation published article %s", result.Article.Slug)
		}
	}
}
