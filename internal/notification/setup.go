package notification

import (
	"fmt"

	"github.com/SlpAus/guideu-backend/internal/platform/database"
)

// MigrateDB 负责自动迁移数据库表结构
func MigrateDB() error {
	if err := database.DB.AutoMigrate(&Notification{}); err != nil {
		return fmt.Errorf("无法迁移notifications表: %w", err)
	}
	return nil
}
