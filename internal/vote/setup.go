package vote

import (
	"fmt"
	"sync"

	"github.com/SlpAus/guideu-backend/internal/platform/config"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
)

var (
	settingsMu sync.RWMutex
	current    = config.VoteConfig{
		MaxAttempts: 5,
		RateLimit:   config.RateLimitConfig{Window: defaultRateWindow, Max: defaultRateMax},
	}
)

// Configure 设置重试次数和限流参数，非正值保留默认
func Configure(cfg config.VoteConfig) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	if cfg.MaxAttempts > 0 {
		current.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.RateLimit.Window > 0 {
		current.RateLimit.Window = cfg.RateLimit.Window
	}
	if cfg.RateLimit.Max > 0 {
		current.RateLimit.Max = cfg.RateLimit.Max
	}
}

func settings() config.VoteConfig {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return current
}

// MigrateDB 负责自动迁移投票账本的表结构
func MigrateDB() error {
	if err := database.DB.AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("无法迁移vote_entries表: %w", err)
	}
	logger.Named("vote").Info("投票账本数据库表迁移成功")
	return nil
}
