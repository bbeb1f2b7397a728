package main

import (
	"fmt"
	"os"

	"github.com/SlpAus/guideu-backend/internal/platform/config"
	"github.com/SlpAus/guideu-backend/internal/platform/database"
	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/SlpAus/guideu-backend/internal/streak"
	"github.com/SlpAus/guideu-backend/internal/vote"
	"github.com/SlpAus/guideu-backend/pkg/token"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "server",
		Short:         "GuideU 同伴问答后端",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newReconcileCommand(), newTokenCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

// bootstrap 加载配置并初始化所有命令共用的全局组件
func bootstrap(withStores bool) (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	log, err := logger.Init(cfg.Log.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	if cfg.Auth.TokenSecret != "" {
		token.SetSecretKey([]byte(cfg.Auth.TokenSecret))
	} else {
		log.Warn("未配置 auth.tokenSecret，使用随机密钥，重启后所有会话失效")
		token.GenerateSecretKey()
	}

	vote.Configure(cfg.Vote)
	if err := streak.Configure(cfg.Streak); err != nil {
		return nil, nil, err
	}

	if withStores {
		database.InitDB(cfg.Database)
		database.InitRedis(cfg.Database.Redis)
	}
	return cfg, log, nil
}
