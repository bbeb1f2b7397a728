package database

import (
	"fmt"
	"strings"

	"github.com/SlpAus/guideu-backend/internal/platform/config"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB 是全局的数据库连接，问答、投票账本、通知、打卡和用户资料均存放于此
var DB *gorm.DB

// Open 根据配置打开数据库连接，但不修改全局变量
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// SQLite 只允许单写者，串行化连接可以避免 database is locked
	if dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// InitDB 初始化全局数据库连接
func InitDB(cfg config.DatabaseConfig) {
	db, err := Open(cfg)
	if err != nil {
		panic("连接数据库失败: " + err.Error())
	}
	DB = db
	logger.Named("database").Info("数据库连接成功", "driver", cfg.Driver)
}
