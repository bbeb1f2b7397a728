package reputation

import (
	"context"
	"fmt"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"gorm.io/gorm"
)

// CoinDelta 返回一次投票状态变化对回答者金币的影响。
// 进入“有用”加一，从“有用”离开减一，其余变化不影响金币。
func CoinDelta(wasUseful, isUseful bool) int64 {
	switch {
	case !wasUseful && isUseful:
		return 1
	case wasUseful && !isUseful:
		return -1
	default:
		return 0
	}
}

// ApplyTransition 把一次投票状态变化折算为回答者的金币和累计有用数，
// 在调用方给定的事务中以单行原子自增写入。返回金币的变化量。
func ApplyTransition(tx *gorm.DB, ownerID string, wasUseful, isUseful bool) (int64, error) {
	delta := CoinDelta(wasUseful, isUseful)
	if delta == 0 {
		return 0, nil
	}
	err := directory.IncrementCountersTx(tx, ownerID, map[directory.Counter]int64{
		directory.CounterCoins:               delta,
		directory.CounterTotalUsefulReceived: delta,
	})
	if err != nil {
		return 0, fmt.Errorf("结算用户 %s 的声望失败: %w", ownerID, err)
	}
	if delta > 0 {
		transitionsTotal.WithLabelValues("gain").Inc()
	} else {
		transitionsTotal.WithLabelValues("loss").Inc()
	}
	return delta, nil
}

// MirrorCoins 把金币变化同步到排行榜。失败只记录日志，由对账或缓存重建修复。
func MirrorCoins(ctx context.Context, ownerID string, delta int64) {
	if delta == 0 || !database.IsRedisHealthy() {
		return
	}
	if err := database.RDB.ZIncrBy(ctx, RankingKey, float64(delta), ownerID).Err(); err != nil {
		logger.Named("reputation").Warn("同步排行榜失败", "user", ownerID, "delta", delta, "error", err)
	}
}

// Contributor 是排行榜中的一项
type Contributor struct {
	Rank  int    `json:"rank"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Coins int64  `json:"coins"`
}

// TopContributors 返回金币最多的用户。
// 优先读取 Redis 排行榜，Redis 不可用或尚未预热时直接查询数据库。
func TopContributors(ctx context.Context, limit int) ([]Contributor, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}

	if database.IsRedisHealthy() {
		out, err := topFromRedis(ctx, limit)
		if err == nil && len(out) > 0 {
			return out, nil
		}
		if err != nil {
			logger.Named("reputation").Warn("读取Redis排行榜失败，改为查询数据库", "error", err)
		}
	}

	profiles, err := directory.TopByCoins(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Contributor, len(profiles))
	for i, p := range profiles {
		out[i] = Contributor{Rank: i + 1, ID: p.ID, Name: p.Name, Coins: p.Coins}
	}
	return out, nil
}

func topFromRedis(ctx context.Context, limit int) ([]Contributor, error) {
	entries, err := database.RDB.ZRevRangeWithScores(ctx, RankingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]string, len(entries))
	for i, z := range entries {
		ids[i] = z.Member.(string)
	}
	profiles, err := directory.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Contributor, 0, len(entries))
	for i, z := range entries {
		id := ids[i]
		out = append(out, Contributor{
			Rank:  i + 1,
			ID:    id,
			Name:  profiles[id].Name,
			Coins: int64(z.Score),
		})
	}
	return out, nil
}
