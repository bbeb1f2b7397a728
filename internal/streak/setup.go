package streak

import (
	"fmt"

	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
)

// MigrateDB 负责自动迁移数据库表结构
func MigrateDB() error {
	if err := database.DB.AutoMigrate(&TaskSet{}); err != nil {
		return fmt.Errorf("无法迁移daily_task_sets表: %w", err)
	}
	logger.Named("streak").Info("每日任务数据库表迁移成功")
	return nil
}
