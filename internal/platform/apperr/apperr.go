// Package apperr 定义核心操作可能返回的错误种类，以及它们到HTTP状态码的映射。
package apperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 所有错误都可以在本地恢复，不会导致进程退出
var (
	// ErrAuthRequired 表示调用者未登录
	ErrAuthRequired = errors.New("auth required")
	// ErrSelfVoteForbidden 表示用户试图给自己的回答投票
	ErrSelfVoteForbidden = errors.New("self vote forbidden")
	// ErrNotFound 表示引用的问题、回答、通知或任务不存在
	ErrNotFound = errors.New("not found")
	// ErrWriteConflict 表示并发写入冲突，调用方应当重新发起同一个幂等操作
	ErrWriteConflict = errors.New("write conflict")
	// ErrRateLimited 表示请求过于频繁
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalid 表示请求参数不合法
	ErrInvalid = errors.New("invalid argument")
)

// Status 把错误映射为HTTP状态码
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrSelfVoteForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrWriteConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code 返回错误种类的短名称，供前端区分
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return "AuthRequired"
	case errors.Is(err, ErrSelfVoteForbidden):
		return "SelfVoteForbidden"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrWriteConflict):
		return "WriteConflict"
	case errors.Is(err, ErrRateLimited):
		return "RateLimited"
	case errors.Is(err, ErrInvalid):
		return "Invalid"
	default:
		return "Internal"
	}
}

// Abort 以统一的JSON格式返回错误
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(Status(err), gin.H{"error": err.Error(), "code": Code(err)})
}
