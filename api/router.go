package api

import (
	"net/http"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/config"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 创建带有CORS、健康检查和指标端点的gin引擎，并注册所有API路由
func NewRouter(cfg config.ServerConfig) *gin.Engine {
	if cfg.Mode == gin.ReleaseMode || cfg.Mode == gin.TestMode {
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Mode != gin.TestMode {
		r.Use(gin.Logger())
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	SetupRoutes(r)
	return r
}

// healthz 在数据库可用时返回200。Redis 不可用只会降级，不影响存活状态。
func healthz(c *gin.Context) {
	sqlDB, err := database.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": database.CurrentRedisStatus()})
}
