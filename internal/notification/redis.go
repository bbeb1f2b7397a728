package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	// channelPrefix 是按用户推送的 Redis Pub/Sub 频道前缀
	channelPrefix = "notify:user:"

	// pushConcurrency 是一次扇出中并行发布的上限
	pushConcurrency = 8
)

// pushMessage 是推送到频道中的消息体。客户端收到后应重新拉取完整列表。
type pushMessage struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`
}

// Channel 返回某个用户的推送频道
func Channel(userID string) string {
	return channelPrefix + userID
}

// push 把新写入的通知尽力推送给各自的接收者。推送失败只记录日志。
func push(ctx context.Context, created []Notification) {
	if len(created) == 0 {
		return
	}
	log := logger.Named("notification")
	if !database.IsRedisHealthy() {
		log.Warn("Redis不可用，跳过通知推送", "count", len(created))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pushConcurrency)
	for _, n := range created {
		n := n
		g.Go(func() error {
			raw, err := json.Marshal(pushMessage{ID: n.ID, Type: n.Type})
			if err != nil {
				return err
			}
			if err := database.RDB.Publish(gctx, Channel(n.RecipientID), raw).Err(); err != nil {
				return fmt.Errorf("推送通知 %s 给 %s 失败: %w", n.ID, n.RecipientID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("通知推送未全部完成", "error", err)
	}
}

// subscribe 订阅某个用户的推送频道，并等待订阅真正生效
func subscribe(ctx context.Context, userID string) (*redis.PubSub, error) {
	sub := database.RDB.Subscribe(ctx, Channel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("订阅通知频道失败: %w", err)
	}
	return sub, nil
}
