package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/config"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/SlpAus/guideu-backend/pkg/lifecycle"
)

const defaultInterval = 10 * time.Minute

// StartScheduler 启动一个后台Goroutine来定期执行对账。
// 它接收一个lifecycle.Handle来管理其生命周期。
func StartScheduler(handle *lifecycle.Handle, cfg config.ReconcileConfig) {
	defer handle.Close() // 确保在退出时通知管理器
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	log := logger.Named("reconcile")
	log.Info("对账调度器已启动", "interval", cfg.Interval, "grace", cfg.Grace)

	// 两次对账之间至少相隔 Interval，停机信号会立即打断等待
	_ = handle.Every(cfg.Interval, func(ctx context.Context) {
		if _, err := Run(ctx, Options{Grace: cfg.Grace}); err != nil {
			// 停机导致的取消不算失败
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				log.Error("定时对账失败", "error", err)
			}
		}
	})
	log.Info("对账调度器正在关闭")
}

// RunOnce 在给定的超时内执行一次对账，用于启动、停机和命令行
func RunOnce(cfg config.ReconcileConfig, timeout time.Duration) (*Report, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Run(ctx, Options{Grace: cfg.Grace})
}
