package database

import (
	"sync"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redis 只保存可以重建的数据（排行榜镜像、投票限流窗口、推送频道）。
// 不可用期间各模块改走数据库或直接放行，恢复后由健康检查器重建镜像。

// RedisStatus 是Redis健康状态的快照
type RedisStatus struct {
	Healthy bool      `json:"healthy"`
	RunID   string    `json:"runId,omitempty"`
	Since   time.Time `json:"since"`
}

var redisHealthyGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "guideu_redis_healthy",
	Help: "1 when Redis is serving the leaderboard mirror, rate limiter and push channels.",
})

var (
	statusMu sync.RWMutex
	status   = RedisStatus{Healthy: true, Since: time.Now()}
)

func init() {
	redisHealthyGauge.Set(1)
}

// IsRedisHealthy 返回Redis当前是否可用
func IsRedisHealthy() bool {
	statusMu.RLock()
	defer statusMu.RUnlock()
	return status.Healthy
}

// CurrentRedisStatus 返回Redis健康状态的快照，供 /healthz 使用
func CurrentRedisStatus() RedisStatus {
	statusMu.RLock()
	defer statusMu.RUnlock()
	return status
}

// SetInitialRunID 记录启动时连接到的Redis实例
func SetInitialRunID(runID string) {
	statusMu.Lock()
	defer statusMu.Unlock()
	status.RunID = runID
}

// UpdateStatus 记录一次健康检查的结论。run_id 只在可用时更新，
// 这样恢复后仍能与不可用之前的实例比较，判断Redis是否重启过。
func UpdateStatus(isHealthy bool, newRunID string) {
	statusMu.Lock()
	defer statusMu.Unlock()

	if status.Healthy != isHealthy {
		status.Healthy = isHealthy
		status.Since = time.Now()
		if isHealthy {
			redisHealthyGauge.Set(1)
			logger.Named("health").Info("Redis已恢复，镜像与推送重新启用", "run_id", newRunID)
		} else {
			redisHealthyGauge.Set(0)
			logger.Named("health").Warn("Redis不可用，排行榜改读数据库，限流放行，推送暂停")
		}
	}
	if isHealthy {
		status.RunID = newRunID
	}
}

// GetLastKnownRunID 返回最近一次可用时的Redis run_id
func GetLastKnownRunID() string {
	statusMu.RLock()
	defer statusMu.RUnlock()
	return status.RunID
}
