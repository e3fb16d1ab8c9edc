// Package database 负责初始化外部数据存储的连接。
package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"pand-feedback-go/internal/config"
	"pand-feedback-go/pkg/log"
)

// RDB 是全局的 Redis 客户端，未配置 Redis 时为 nil。
var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接。Addr 为空时跳过。
func InitRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		log.Info("未配置 Redis，提交锁使用进程内实现")
		return nil
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	if err := RDB.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
	return RDB
}
