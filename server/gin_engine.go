package server

import (
	"github.com/gin-gonic/gin"
)

// NewGinEngine 创建一个不带默认中间件的干净 Gin 引擎。
// 中间件的集合与顺序完全由调用方决定，以便精准控制治理策略。
func NewGinEngine(middlewares ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(middlewares...)
	return engine
}
