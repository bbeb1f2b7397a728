package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/logger"
	"github.com/SlpAus/guideu-backend/pkg/lifecycle"
)

const (
	httpTimeout     = 15 * time.Second
	gracefulTimeout = 30 * time.Second
	forcefulTimeout = 1 * time.Second
)

// Coordinator 负责编排应用程序的优雅停机流程。
// 它接收外部创建的生命周期管理器，并使用它们来协调停机。
type Coordinator struct {
	GracefulManager *lifecycle.Manager
	ForcefulManager *lifecycle.Manager
	// FinalStep 在所有后台服务退出后执行，例如最后一次对账
	FinalStep func() error
}

// NewCoordinator 创建一个新的停机协调器。
func NewCoordinator(gracefulMgr, forcefulMgr *lifecycle.Manager, finalStep func() error) *Coordinator {
	return &Coordinator{
		GracefulManager: gracefulMgr,
		ForcefulManager: forcefulMgr,
		FinalStep:       finalStep,
	}
}

// ListenForSignalsAndShutdown 阻塞直到收到停机信号，然后完成整个停机流程。
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	logger.Named("shutdown").Info("收到关闭信号，开始优雅停机", "signal", sig.String())
	c.Shutdown(server)
}

// Shutdown 关闭HTTP服务器，然后分两个阶段停止后台服务。
func (c *Coordinator) Shutdown(server *http.Server) {
	log := logger.Named("shutdown")

	// 关闭HTTP服务器，允许正在进行的请求完成
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("HTTP服务器关闭错误", "error", err)
		} else {
			log.Info("HTTP服务器已关闭")
		}
	}

	// 阶段一: 优雅停机
	log.Info("第一阶段停机：等待后台任务完成", "timeout", gracefulTimeout)
	c.GracefulManager.Shutdown()
	remaining := c.GracefulManager.WaitWithTimeout(gracefulTimeout)
	if len(remaining) == 0 {
		log.Info("所有服务已在第一阶段优雅关闭")
	} else {
		// 阶段二: 强制停机，不再等待服务完成手头的工作
		log.Warn("第一阶段超时，发送强制停机信号", "remaining", remaining, "timeout", forcefulTimeout)
		c.ForcefulManager.Shutdown()
		if left := c.ForcefulManager.WaitWithTimeout(forcefulTimeout); len(left) > 0 {
			log.Error("部分服务未能退出", "services", left)
		}
	}

	if c.FinalStep != nil {
		log.Info("正在执行停机前的最后一步")
		if err := c.FinalStep(); err != nil {
			log.Error("停机前的最后一步失败", "error", err)
		}
	}

	log.Info("优雅停机完成")
}
