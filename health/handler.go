package health

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Registry 维护一组命名的就绪检查项。
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewRegistry 创建一个空的检查注册表。
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register 注册一个命名检查项，同名会被覆盖。
func (r *Registry) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Check 依次执行全部检查项，返回每项的结果描述与整体是否健康。
func (r *Registry) Check() (map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]string, len(r.checkers))
	healthy := true
	for name, checker := range r.checkers {
		if err := checker(); err != nil {
			results[name] = err.Error()
			healthy = false
		} else {
			results[name] = "ok"
		}
	}
	return results, healthy
}

// LivenessHandler 返回存活探针处理函数。
// 进程能响应即视为存活，不依赖任何下游组件。
func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// ReadinessHandler 返回就绪探针处理函数。
// 任一检查项失败时返回 503，便于负载均衡摘除实例。
func ReadinessHandler(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, healthy := registry.Check()
		status := http.StatusOK
		overall := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "unavailable"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
