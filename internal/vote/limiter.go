package vote

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// rateKeyPrefix 是Redis中每个投票者的有序集合键名前缀
	rateKeyPrefix = "vote_rate:"

	defaultRateWindow = time.Minute
	defaultRateMax    = 30
)

// generateUniqueID 根据给定的时间生成一个16字节的、抗冲突的ID，并将其编码为Base64字符串。
// 结构: [ 8字节纳秒时间戳 (Big Endian) | 8字节随机数 ]
func generateUniqueID(t time.Time) (string, error) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(t.UnixNano()))
	if _, err := rand.Read(b[8:16]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AllowVote 在滑动窗口内为投票者记录一次请求，返回是否仍在限额之内。
// 超出限额的请求不会占用窗口名额。Redis不可用时放行。
func AllowVote(ctx context.Context, voterID string, now time.Time) (bool, error) {
	if !database.IsRedisHealthy() {
		return true, nil
	}
	cfg := settings().RateLimit
	key := rateKeyPrefix + voterID

	// 1. 计算窗口起点，作为清理的边界
	minTimestamp := float64(now.Add(-cfg.Window).UnixMicro())

	// 2. 生成本次请求的Score和Member
	member, err := generateUniqueID(now)
	if err != nil {
		return true, fmt.Errorf("生成 memberID 失败: %w", err)
	}

	// 3. 使用Redis事务(TxPipeline)来保证所有操作的原子性
	pipe := database.RDB.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%f", minTimestamp))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	pipe.Expire(ctx, key, cfg.Window+time.Minute)
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		// 限流失败不应阻断投票
		logger.Named("vote").Warn("执行投票限流事务失败，放行本次请求", "voter", voterID, "error", err)
		return true, nil
	}

	// 4. 超出限额时撤回本次记录
	if countCmd.Val() > int64(cfg.Max) {
		if err := database.RDB.ZRem(ctx, key, member).Err(); err != nil {
			logger.Named("vote").Warn("撤回超额的限流记录失败", "voter", voterID, "error", err)
		}
		return false, nil
	}
	return true, nil
}
