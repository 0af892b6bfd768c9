package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// TracingMiddleware 返回为请求注入 OpenTelemetry 追踪的中间件。
// 它包装 otelgin.Middleware 以提供标准的链路追踪能力。
// serviceName: 服务名称，用于标识 Span 的来源。
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}
