package streak

import (
	"fmt"
	"sync"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/config"
)

var (
	clockMu  sync.RWMutex
	nowFunc  = time.Now
	location = time.UTC
)

// Configure 设置计算“今天”所用的时区
func Configure(cfg config.StreakConfig) error {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("无法加载时区 %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	clockMu.Lock()
	location = loc
	clockMu.Unlock()
	return nil
}

// SetClock 替换时钟，传入 nil 恢复系统时钟
func SetClock(fn func() time.Time) {
	if fn == nil {
		fn = time.Now
	}
	clockMu.Lock()
	nowFunc = fn
	clockMu.Unlock()
}

// Today 返回配置时区下的当前日期
func Today() string {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return nowFunc().In(location).Format(DateLayout)
}
