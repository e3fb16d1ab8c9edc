// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pand-feedback-go/internal/config"
	"pand-feedback-go/internal/handler"
	"pand-feedback-go/internal/middleware"
	"pand-feedback-go/internal/repository"
	"pand-feedback-go/internal/service"
	"pand-feedback-go/pkg/database"
	"pand-feedback-go/pkg/export"
	"pand-feedback-go/pkg/github"
	"pand-feedback-go/pkg/kafka"
	"pand-feedback-go/pkg/log"
	"pand-feedback-go/pkg/storage"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化 Redis 与提交锁
	rdb := database.InitRedis(cfg.Redis)
	lockTTL := repository.InFlightTTL(
		time.Duration(cfg.Redis.InFlightTTLSeconds)*time.Second,
		time.Duration(cfg.GitHub.TimeoutSeconds)*time.Second,
	)
	guard := repository.NewInFlightGuard(rdb, lockTTL)

	// 4. 选择远端存储
	committer := newCommitter(cfg)
	if !committer.Enabled() {
		log.Warnf("远端存储 %s 未配置凭证，进入仅本机下载模式", committer.Name())
	}

	// 5. 本机输出与提交事件
	emitter := export.NewLocalWriter(cfg.Feedback.LocalExportDir)
	publisher := kafka.NewPublisher(cfg.Kafka)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("关闭 Kafka 生产者失败", err)
		}
	}()

	// 6. 初始化 Service (依赖注入)
	sessions := repository.NewSessionRepository(cfg.Feedback.StatusDisplayWindow())
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go repository.RunSessionSweeper(sweepCtx, sessions, time.Minute, cfg.Feedback.SessionIdleTimeout())
	feedbackService := service.NewFeedbackService(
		sessions,
		guard,
		committer,
		emitter,
		publisher,
		service.WithLocation(cfg.Feedback.Location()),
	)
	moduleService := service.NewModuleService()

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	handler.RegisterRoutes(r, moduleService, feedbackService)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown 会等待正在进行的提交完成
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// newCommitter 根据 remote.backend 创建远端存储。
func newCommitter(cfg config.Config) service.Committer {
	switch cfg.Remote.Backend {
	case config.BackendMinIO:
		store, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatal("MinIO 存储桶检查失败", err)
		}
		return store
	case config.BackendGitHub, "":
		return github.NewClient(cfg.GitHub)
	default:
		log.Fatalf("未知的远端存储类型: %s", cfg.Remote.Backend)
		return nil
	}
}
