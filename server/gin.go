package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// shutdownTimeout 优雅关闭等待在途请求的最长时间。
const shutdownTimeout = 5 * time.Second

// GinServer 封装标准 http.Server 来运行 Gin 引擎，提供优雅启停能力。
type GinServer struct {
	server *http.Server
	addr   string
	logger *slog.Logger
}

// NewGinServer 创建一个新的 Gin 服务器实例。
func NewGinServer(engine *gin.Engine, addr string, logger *slog.Logger) *GinServer {
	return &GinServer{
		server: &http.Server{
			Addr:    addr,
			Handler: engine,
		},
		addr:   addr,
		logger: logger,
	}
}

// Start 启动 HTTP 服务器并阻塞，直到出错或上下文被取消。
// 上下文取消时触发优雅关闭。
func (s *GinServer) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", "addr", s.addr)

	errChan := make(chan error, 1)
	go func() {
		// ErrServerClosed 表示正常的 Shutdown 退出，不作为错误上报。
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server stopping due to context cancellation")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Stop 优雅地停止服务器，在超时时间内等待现有请求完成。
func (s *GinServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server gracefully")
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
