package directory

import (
	"context"
	"fmt"

	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
)

// MigrateDB 负责自动迁移数据库表结构
func MigrateDB() error {
	if err := database.DB.AutoMigrate(&Profile{}); err != nil {
		return fmt.Errorf("无法迁移profiles表: %w", err)
	}
	logger.Named("directory").Info("Profile数据库表迁移成功")
	return nil
}

// WarmupIndex 从数据库全量加载资料，重建受众索引。返回发生变化的用户数。
func WarmupIndex(ctx context.Context) (int, error) {
	var profiles []Profile
	if err := database.DB.WithContext(ctx).Select("id", "year", "branch").Find(&profiles).Error; err != nil {
		return 0, fmt.Errorf("无法读取用户资料: %w", err)
	}

	changed := globalIndex.Reset(profiles)
	logger.Named("directory").Info("受众索引预热完成", "users", globalIndex.Size(), "changed", changed)
	return changed, nil
}
