// Package server 提供了 HTTP 服务器的统一生命周期管理封装。
package server

import "context"

// Server 定义了服务器的通用生命周期契约。
// 实现了 Start 和 Stop 的类型即可被 app 层统一编排启动与关闭。
type Server interface {
	// Start 启动服务器。
	// 该调用应当阻塞，直到服务器退出或上下文被取消。
	Start(ctx context.Context) error
	// Stop 优雅地停止服务器。
	// 应当等待正在处理的请求完成后释放资源。
	Stop(ctx context.Context) error
}
