package startup

import (
	"context"
	"fmt"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/notification"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/SlpAus/guideu-backend/internal/platform/metadata"
	"github.com/SlpAus/guideu-backend/internal/qa"
	"github.com/SlpAus/guideu-backend/internal/reputation"
	"github.com/SlpAus/guideu-backend/internal/streak"
	"github.com/SlpAus/guideu-backend/internal/vote"
)

// MigrateAll 依次迁移所有模块的表结构
func MigrateAll() error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"metadata", func() error { return metadata.MigrateDB(database.DB) }},
		{"directory", directory.MigrateDB},
		{"qa", qa.MigrateDB},
		{"vote", vote.MigrateDB},
		{"notification", notification.MigrateDB},
		{"streak", streak.MigrateDB},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("迁移 %s 失败: %w", step.name, err)
		}
	}
	return nil
}

// InitializeApplication 是应用首次启动时执行的总入口
func InitializeApplication(ctx context.Context) error {
	log := logger.Named("startup")
	log.Info("开始应用首次初始化")

	if err := MigrateAll(); err != nil {
		return err
	}

	n, err := directory.WarmupIndex(ctx)
	if err != nil {
		return fmt.Errorf("预热受众索引失败: %w", err)
	}
	log.Info("受众索引就绪", "changed", n)

	// 排行榜只是镜像，Redis 不可用时由健康检查器在恢复后重建
	if database.IsRedisHealthy() {
		if err := reputation.WarmupLeaderboard(ctx); err != nil {
			log.Warn("预热排行榜失败", "error", err)
		}
	}

	log.Info("应用初始化完成")
	return nil
}

// RebuildCache 在Redis重启后重建其中的派生数据
func RebuildCache(ctx context.Context) error {
	log := logger.Named("startup")
	log.Info("开始缓存热重建")
	if err := reputation.WarmupLeaderboard(ctx); err != nil {
		return fmt.Errorf("重建排行榜失败: %w", err)
	}
	log.Info("缓存热重建完成")
	return nil
}

// HandleRedisRecovery 在Redis从不可用状态恢复且未重启时执行。
// 不可用期间跳过的排行榜增量只能通过重建补齐。
func HandleRedisRecovery(ctx context.Context) error {
	logger.Named("startup").Info("检测到Redis已恢复，正在补齐排行榜")
	return RebuildCache(ctx)
}
