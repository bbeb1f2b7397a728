package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SlpAus/guideu-backend/api"
	"github.com/SlpAus/guideu-backend/internal/directory"
	"github.com/SlpAus/guideu-backend/internal/platform/health"
	"github.com/SlpAus/guideu-backend/internal/platform/shutdown"
	"github.com/SlpAus/guideu-backend/internal/platform/startup"
	"github.com/SlpAus/guideu-backend/internal/reconcile"
	"github.com/SlpAus/guideu-backend/pkg/lifecycle"
	"github.com/spf13/cobra"
)

const reconcileTimeout = 2 * time.Minute

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动HTTP服务和后台任务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, log, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	checker := health.NewChecker(startup.RebuildCache, startup.HandleRedisRecovery)

	// 1. 获取初始Run ID
	checker.InitializeRunID(ctx)

	// 2. 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(ctx); err != nil {
		return fmt.Errorf("应用初始化失败，无法启动: %w", err)
	}

	// 3. 启动时对账一次，修复上次异常退出留下的偏差
	if _, err := reconcile.RunOnce(cfg.Reconcile, reconcileTimeout); err != nil {
		log.Error("启动对账失败", "error", err)
	}

	// 4. 启动后健康检查
	checker.PerformCheck(ctx)

	gracefulManager := lifecycle.NewManager("graceful", log.SugaredLogger)
	forcefulManager := lifecycle.NewManager("forceful", log.SugaredLogger)

	// 健康检查器没有需要收尾的工作，收到第一阶段信号即退出
	if err := gracefulManager.Go("health", checker.Start); err != nil {
		return err
	}
	if err := gracefulManager.Go("directory-index", func(h *lifecycle.Handle) {
		directory.StartIndexSync(h, cfg.Directory.IndexRefresh)
	}); err != nil {
		return err
	}
	reconcileHandle, err := gracefulManager.NewServiceHandle("reconcile")
	if err != nil {
		return err
	}
	go reconcile.StartScheduler(reconcileHandle, cfg.Reconcile)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.NewRouter(cfg.Server),
	}
	go func() {
		log.Info("服务器已准备就绪，开始监听", "addr", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP服务器异常退出", "error", err)
		}
	}()

	coordinator := shutdown.NewCoordinator(gracefulManager, forcefulManager, func() error {
		_, err := reconcile.RunOnce(cfg.Reconcile, reconcileTimeout)
		return err
	})
	coordinator.ListenForSignalsAndShutdown(server)
	return nil
}
