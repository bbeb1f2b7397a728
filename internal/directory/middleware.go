package directory

import (
	"strings"
	"time"

	"github.com/SlpAus/guideu-backend/pkg/token"
	"github.com/gin-gonic/gin"
)

const (
	// CookieName 是浏览器会话令牌的Cookie名，供无法设置请求头的 EventSource 使用
	CookieName = "session"
	UserIDKey  = "userID"
)

// LoadUserMiddleware 从 Authorization 头或会话Cookie中读取令牌，
// 校验通过后把用户ID放入Gin上下文。校验失败的请求按匿名处理。
func LoadUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		} else if v, err := c.Cookie(CookieName); err == nil {
			raw = v
		}

		userID := ""
		if raw != "" {
			if id, err := token.Validate(raw, time.Now()); err == nil {
				userID = id
			}
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// CurrentUserID 返回当前请求的用户ID，匿名请求返回空字符串
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
