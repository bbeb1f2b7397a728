package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/SlpAus/guideu-backend/pkg/lifecycle"
)

const (
	DefaultCheckInterval = 5 * time.Second
	pingTimeout          = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// RunIDFunc 返回Redis实例当前的 run_id
type RunIDFunc func(ctx context.Context) (string, error)

// RedisRunID 从Redis服务器信息中提取run_id
func RedisRunID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	info, err := database.RDB.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	matches := runIDPattern.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("无法在Redis INFO中找到run_id")
	}
	return matches[1], nil
}

// Checker 定期检查Redis，并在其重启或恢复后触发缓存重建
type Checker struct {
	Interval time.Duration
	RunID    RunIDFunc
	// Rebuild 在检测到Redis重启（缓存已全部丢失）时调用
	Rebuild func(ctx context.Context) error
	// Recover 在Redis从不可用恢复、但没有重启时调用
	Recover func(ctx context.Context) error
}

// NewChecker 使用默认间隔创建检查器
func NewChecker(rebuild, recover func(ctx context.Context) error) *Checker {
	return &Checker{
		Interval: DefaultCheckInterval,
		RunID:    RedisRunID,
		Rebuild:  rebuild,
		Recover:  recover,
	}
}

// InitializeRunID 在应用启动时执行一次，获取初始的run_id。
// Redis 此时不可用并不致命：状态被标记为不可用，由后续检查负责恢复。
func (c *Checker) InitializeRunID(ctx context.Context) {
	log := logger.Named("health")
	runID, err := c.RunID(ctx)
	if err != nil {
		log.Warn("无法在启动时获取Redis Run ID，以降级模式运行", "error", err)
		database.UpdateStatus(false, "")
		return
	}
	database.SetInitialRunID(runID)
	log.Info("获取初始Redis Run ID成功", "run_id", runID)
}

// atomicRebuild 只有在重建期间Redis没有再次重启的情况下，才认为重建成功。
func (c *Checker) atomicRebuild(ctx context.Context, idBefore string) bool {
	log := logger.Named("health")
	if err := c.Rebuild(ctx); err != nil {
		log.Error("缓存热重建失败", "error", err)
		return false
	}

	idAfter, err := c.RunID(ctx)
	if err != nil {
		log.Error("缓存重建后无法连接到Redis，重建无效", "error", err)
		return false
	}
	if idBefore != idAfter {
		log.Error("缓存重建期间检测到Redis再次重启，重建无效", "before", idBefore, "after", idAfter)
		return false
	}

	log.Info("缓存热重建成功并通过原子性校验", "run_id", idAfter)
	return true
}

// PerformCheck 执行一次完整的健康检查和可能的修复操作。
func (c *Checker) PerformCheck(ctx context.Context) {
	currentRunID, err := c.RunID(ctx)
	if err != nil {
		database.UpdateStatus(false, "")
		return
	}

	lastKnownRunID := database.GetLastKnownRunID()
	switch {
	case currentRunID != lastKnownRunID:
		// 检测到Redis重启，只有重建成功才恢复可用状态
		if c.atomicRebuild(ctx, currentRunID) {
			database.UpdateStatus(true, currentRunID)
		} else {
			database.UpdateStatus(false, "")
		}
	case !database.IsRedisHealthy():
		if c.Recover != nil {
			if err := c.Recover(ctx); err != nil {
				logger.Named("health").Error("Redis恢复后操作失败", "error", err)
				return
			}
		}
		database.UpdateStatus(true, currentRunID)
	default:
		database.UpdateStatus(true, currentRunID)
	}
}

// Start 在生命周期句柄被取消之前，定期、阻塞式地执行健康检查。
func (c *Checker) Start(handle *lifecycle.Handle) {
	defer handle.Close()
	log := logger.Named("health")
	log.Info("Redis健康检查器已启动", "interval", c.Interval)

	_ = handle.Every(c.Interval, c.PerformCheck)
	log.Info("Redis健康检查器正在关闭")
}
