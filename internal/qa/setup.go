package qa

import (
	"fmt"

	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
)

// MigrateDB 负责自动迁移数据库表结构
func MigrateDB() error {
	if err := database.DB.AutoMigrate(&Question{}, &Answer{}); err != nil {
		return fmt.Errorf("无法迁移问答表: %w", err)
	}
	logger.Named("qa").Info("问答数据库表迁移成功")
	return nil
}
