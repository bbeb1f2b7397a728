package notification

import (
	"net/http"
	"time"

	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/apperr"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// listLimit 是一次返回的最大通知数
	listLimit = 100

	// resyncInterval 是没有推送时重新发送快照的间隔，推送丢失时由它兜底
	resyncInterval = 15 * time.Second
)

// SnapshotResponse 是通知列表的完整快照。客户端每次收到都应整体替换本地列表。
type SnapshotResponse struct {
	Notifications []Notification `json:"notifications"`
	Unread        int64          `json:"unread"`
}

// GetNotifications 返回当前用户的通知列表
func GetNotifications(c *gin.Context) {
	list, unread, err := List(c.Request.Context(), directory.CurrentUserID(c), listLimit)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, SnapshotResponse{Notifications: list, Unread: unread})
}

// OpenNotificationHandler 标记通知已读并返回跳转目标
func OpenNotificationHandler(c *gin.Context) {
	target, err := OpenNotification(c.Request.Context(), c.Param("id"), directory.CurrentUserID(c))
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, target)
}

// StreamNotifications 以SSE的形式持续发送当前用户的通知快照。
// 连接建立时发送一次，此后每收到一次推送或每隔 resyncInterval 再发送一次完整快照。
func StreamNotifications(c *gin.Context) {
	userID := directory.CurrentUserID(c)
	if userID == "" {
		apperr.Abort(c, apperr.ErrAuthRequired)
		return
	}
	ctx := c.Request.Context()
	log := logger.Named("notification").With("user", userID)

	var msgs <-chan *redis.Message
	if database.IsRedisHealthy() {
		sub, err := subscribe(ctx, userID)
		if err != nil {
			log.Warn("订阅推送失败，退化为定时快照", "error", err)
		} else {
			defer sub.Close()
			msgs = sub.Channel()
		}
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	send := func() bool {
		list, unread, err := List(ctx, userID, listLimit)
		if err != nil {
			log.Warn("读取通知快照失败", "error", err)
			return false
		}
		c.SSEvent("snapshot", SnapshotResponse{Notifications: list, Unread: unread})
		c.Writer.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			if !send() {
				return
			}
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
