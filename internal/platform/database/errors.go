package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsNotFound 判断错误是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsRetryableError 判断一次写入失败是否值得短间隔重试（SQLite 锁冲突、Postgres 序列化失败）
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "deadlock")
}
