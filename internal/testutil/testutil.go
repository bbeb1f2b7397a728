// Package testutil 为各模块的测试准备独立的内存SQLite和进程内Redis。
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/config"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Env 持有一次测试使用的存储
type Env struct {
	DB    *gorm.DB
	RDB   *redis.Client
	Redis *miniredis.Miniredis
}

// Setup 打开一个只属于当前测试的内存数据库和Redis，并替换全局连接。
// 测试结束后恢复原来的全局连接。
func Setup(tb testing.TB) *Env {
	tb.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	mr := miniredis.RunT(tb)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	prevDB, prevRDB := database.DB, database.RDB
	database.DB, database.RDB = db, rdb
	database.UpdateStatus(true, "")

	tb.Cleanup(func() {
		_ = rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		database.DB, database.RDB = prevDB, prevRDB
		database.UpdateStatus(true, "")
	})

	return &Env{DB: db, RDB: rdb, Redis: mr}
}

// Migrate 依次执行各模块的迁移函数
func Migrate(tb testing.TB, migrations ...func() error) {
	tb.Helper()
	for _, m := range migrations {
		if err := m(); err != nil {
			tb.Fatalf("migrate: %v", err)
		}
	}
}

// Clock 是一个可以手动拨动的时钟
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock 创建一个停在给定时刻的时钟
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now 返回当前时刻
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 向前拨动时钟
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set 把时钟设为给定时刻
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
