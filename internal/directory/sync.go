package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/SlpAus/guideu-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
)

// ProfileChannel 是资料变更的广播频道，多个实例借此同步各自的受众索引
const ProfileChannel = "directory:profiles"

// DefaultIndexRefresh 是全量重建受众索引的默认间隔
const DefaultIndexRefresh = time.Minute

// profileChange 是广播的资料变更
type profileChange struct {
	ID     string `json:"id"`
	Branch string `json:"branch"`
	Year   string `json:"year"`
}

// publishChange 把资料变更广播给其他实例。失败只记录日志，由定时重建兜底。
func publishChange(ctx context.Context, p *Profile) {
	if !database.IsRedisHealthy() {
		return
	}
	raw, err := json.Marshal(profileChange{ID: p.ID, Branch: p.Branch, Year: p.Year})
	if err != nil {
		return
	}
	if err := database.RDB.Publish(ctx, ProfileChannel, raw).Err(); err != nil {
		logger.Named("directory").Warn("广播资料变更失败", "user", p.ID, "error", err)
	}
}

func subscribeChanges(ctx context.Context) (*redis.PubSub, <-chan *redis.Message) {
	if !database.IsRedisHealthy() {
		return nil, nil
	}
	sub := database.RDB.Subscribe(ctx, ProfileChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		logger.Named("directory").Warn("订阅资料变更失败，只依赖定时重建", "error", err)
		return nil, nil
	}
	return sub, sub.Channel()
}

// StartIndexSync 让本进程的受众索引跟上其他地方写入的资料：
// 实时应用其他实例广播的变更，并每隔 interval 从数据库全量重建一次，
// 覆盖绕过 UpsertProfile 直接写库的情况。
func StartIndexSync(handle *lifecycle.Handle, interval time.Duration) {
	defer handle.Close()
	if interval <= 0 {
		interval = DefaultIndexRefresh
	}
	ctx := handle.Ctx()
	log := logger.Named("directory")
	log.Info("受众索引同步已启动", "interval", interval)

	sub, msgs := subscribeChanges(ctx)
	defer func() {
		if sub != nil {
			_ = sub.Close()
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-handle.Done():
			log.Info("受众索引同步正在关闭")
			return
		case msg, ok := <-msgs:
			if !ok {
				sub, msgs = nil, nil
				continue
			}
			var ch profileChange
			if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil || ch.ID == "" {
				log.Warn("忽略无法解析的资料变更", "payload", msg.Payload)
				continue
			}
			globalIndex.Apply(ch.ID, ch.Branch, ch.Year)
		case <-ticker.C:
			if _, err := WarmupIndex(ctx); err != nil && ctx.Err() == nil {
				log.Warn("定时重建受众索引失败", "error", err)
			}
			// Redis 恢复后重新订阅
			if sub == nil {
				sub, msgs = subscribeChanges(ctx)
			}
		}
	}
}
