package reputation

import (
	"context"
	"fmt"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

// WarmupLeaderboard 从数据库加载所有用户的金币数，重建Redis排行榜
func WarmupLeaderboard(ctx context.Context) error {
	var profiles []directory.Profile
	// 1. 从数据库读取所有用户的金币
	if err := database.DB.WithContext(ctx).Select("id", "coins").Find(&profiles).Error; err != nil {
		return fmt.Errorf("无法读取用户金币: %w", err)
	}

	// 2. 使用事务管道先清空再整体写入，读者不会看到半成品
	members := make([]redis.Z, len(profiles))
	for i, p := range profiles {
		members[i] = redis.Z{Score: float64(p.Coins), Member: p.ID}
	}
	pipe := database.RDB.TxPipeline()
	pipe.Del(ctx, RankingKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, RankingKey, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("预热排行榜到Redis失败: %w", err)
	}

	logger.Named("reputation").Info("排行榜预热完成", "users", len(profiles))
	return nil
}
