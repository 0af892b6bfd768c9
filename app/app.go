// Package app 提供应用生命周期的统一编排：启动注册的服务器、
// 监听系统信号并在退出时按序执行优雅关闭与资源清理。
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wyfcoding/rangesum/server"
)

// shutdownTimeout 整体优雅关闭的最长等待时间。
const shutdownTimeout = 10 * time.Second

// App 是应用的核心容器，管理服务器启停、信号处理与资源清理。
type App struct {
	name   string
	logger *slog.Logger
	opts   options
	ctx    context.Context
	cancel func()
}

// New 创建一个应用实例。
func New(name string, logger *slog.Logger, opts ...Option) *App {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		name:   name,
		logger: logger,
		opts:   o,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 启动全部注册的服务器并阻塞，直到收到退出信号。
// 退出时按注册顺序停止服务器，随后执行全部清理函数。
func (a *App) Run() error {
	a.logger.Info("application starting", "name", a.name, "pid", os.Getpid())

	for _, srv := range a.opts.servers {
		go func(s server.Server) {
			if err := s.Start(a.ctx); err != nil {
				a.logger.Error("server failed to start", "error", err)
				// 关键服务器启动失败时触发整体关闭。
				a.cancel()
			}
		}(srv)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-a.ctx.Done():
	}
	a.logger.Info("shutting down application", "name", a.name)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, srv := range a.opts.servers {
		if err := srv.Stop(shutdownCtx); err != nil {
			a.logger.Error("server failed to stop", "error", err)
			return err
		}
	}

	for _, cleanup := range a.opts.cleanups {
		cleanup()
	}

	a.logger.Info("application shut down gracefully")
	return nil
}
