package database

import (
	"context"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/config"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

// RDB 是一个全局的Redis客户端实例，承载排行榜镜像、投票限流和通知推送
var RDB *redis.Client

// InitRedis 初始化与Redis数据库的连接。
// Redis 只承载可重建的数据，连接失败时记录警告并继续，由健康检查器负责恢复。
func InitRedis(cfg config.RedisConfig) {
	RDB = redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RDB.Ping(ctx).Err(); err != nil {
		logger.Named("database").Warn("无法连接到Redis", "addr", cfg.Address, "error", err)
		UpdateStatus(false, "")
		return
	}

	logger.Named("database").Info("Redis 连接成功", "addr", cfg.Address)
}
