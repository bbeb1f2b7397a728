package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Vote      VoteConfig      `mapstructure:"vote"`
	Streak    StreakConfig    `mapstructure:"streak"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	// Driver 为 sqlite 或 postgres
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// AuthConfig 定义了会话令牌的校验参数
type AuthConfig struct {
	TokenSecret string        `mapstructure:"tokenSecret"`
	TokenTTL    time.Duration `mapstructure:"tokenTTL"`
}

// DirectoryConfig 定义了受众索引的同步参数
type DirectoryConfig struct {
	IndexRefresh time.Duration `mapstructure:"indexRefresh"`
}

// VoteConfig 定义了投票账本的重试与限流参数
type VoteConfig struct {
	MaxAttempts int             `mapstructure:"maxAttempts"`
	RateLimit   RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig 定义了每个投票者在滑动窗口内允许的投票次数
type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window"`
	Max    int           `mapstructure:"max"`
}

// StreakConfig 定义了每日打卡的时区
type StreakConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// ReconcileConfig 定义了对账任务的调度参数
type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Grace    time.Duration `mapstructure:"grace"`
}

// Default 返回一份所有字段均为默认值的配置，测试和无配置文件启动时使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "guideu.db")
	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("log.mode", "development")
	v.SetDefault("auth.tokenSecret", "")
	v.SetDefault("auth.tokenTTL", 30*24*time.Hour)
	v.SetDefault("directory.indexRefresh", time.Minute)
	v.SetDefault("vote.maxAttempts", 5)
	v.SetDefault("vote.rateLimit.window", time.Minute)
	v.SetDefault("vote.rateLimit.max", 30)
	v.SetDefault("streak.timezone", "UTC")
	v.SetDefault("reconcile.interval", 10*time.Minute)
	v.SetDefault("reconcile.grace", 30*time.Second)
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件，找不到时使用默认值
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 1. 设置配置文件名和类型
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// 2. 添加配置文件搜索路径
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 3. 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:9090
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 读取配置文件，文件不存在不算错误
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// 5. 将配置反序列化到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	Cfg = &cfg
	return Cfg, nil
}
