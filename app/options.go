package app

import "github.com/wyfcoding/rangesum/server"

// Option 配置应用选项。
type Option func(*options)

type options struct {
	servers  []server.Server
	cleanups []func()
}

// WithServer 注册一个或多个服务器，随应用启停。
func WithServer(servers ...server.Server) Option {
	return func(o *options) {
		o.servers = append(o.servers, servers...)
	}
}

// WithCleanup 注册应用关闭时执行的清理函数。
func WithCleanup(cleanup func()) Option {
	return func(o *options) {
		o.cleanups = append(o.cleanups, cleanup)
	}
}
