package metadata

import (
	"fmt"

	"gorm.io/gorm"
)

// MigrateDB 负责初始化metadata模块的数据库部分
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&Metadata{}); err != nil {
		return fmt.Errorf("无法迁移metadata表: %w", err)
	}
	return nil
}
