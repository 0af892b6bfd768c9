// Package handler 实现了聚合引擎的 HTTP 接入层。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/rangesum/engine"
	"github.com/wyfcoding/rangesum/response"
	"github.com/wyfcoding/rangesum/worker"
	"github.com/wyfcoding/rangesum/xerrors"
)

// submitTimeout 批量任务入队的最长等待时间。
const submitTimeout = 2 * time.Second

// TableHandler 承载全部表相关路由的处理逻辑。
type TableHandler struct {
	engine *engine.Engine
	pool   *worker.Pool
	logger *slog.Logger
}

// NewTableHandler 创建表处理器。
func NewTableHandler(e *engine.Engine, pool *worker.Pool, logger *slog.Logger) *TableHandler {
	return &TableHandler{engine: e, pool: pool, logger: logger}
}

// RegisterRoutes 在给定路由组下注册全部表路由。
func (h *TableHandler) RegisterRoutes(group *gin.RouterGroup) {
	tables := group.Group("/tables")
	{
		tables.POST("", h.CreateTable)
		tables.GET("", h.ListTables)
		tables.GET("/:name", h.TableStats)
		tables.DELETE("/:name", h.DropTable)
		tables.POST("/:name/update", h.Update)
		tables.GET("/:name/sum", h.Sum)
		tables.POST("/:name/bulk", h.BulkUpdate)
	}
}

type createTableRequest struct {
	Name string `json:"name" binding:"required,max=128"`
	Size int    `json:"size" binding:"required,min=1"`
}

// CreateTable 创建一张新表。
func (h *TableHandler) CreateTable(c *gin.Context) {
	var req createTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, xerrors.InvalidArg("invalid request body").WithDetail("%v", err))
		return
	}

	if err := h.engine.CreateTable(c.Request.Context(), req.Name, req.Size); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, gin.H{"name": req.Name, "size": req.Size})
}

// ListTables 返回全部表的元信息。
func (h *TableHandler) ListTables(c *gin.Context) {
	response.Success(c, h.engine.List(c.Request.Context()))
}

// TableStats 返回单表的元信息与运行统计。
func (h *TableHandler) TableStats(c *gin.Context) {
	info, err := h.engine.Stats(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, info)
}

// DropTable 删除一张表。
func (h *TableHandler) DropTable(c *gin.Context) {
	if err := h.engine.DropTable(c.Request.Context(), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

type updateRequest struct {
	L     int   `json:"l"     binding:"min=0"`
	R     int   `json:"r"     binding:"min=0"`
	Delta int64 `json:"delta"`
}

// Update 对闭区间 [l, r] 内的每个元素加上 delta。
func (h *TableHandler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, xerrors.InvalidArg("invalid request body").WithDetail("%v", err))
		return
	}

	if err := h.engine.Update(c.Request.Context(), c.Param("name"), req.L, req.R, req.Delta); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Sum 返回闭区间 [l, r] 内元素之和。
func (h *TableHandler) Sum(c *gin.Context) {
	l, err := strconv.Atoi(c.DefaultQuery("l", "0"))
	if err != nil {
		response.Error(c, xerrors.InvalidArg("query parameter l must be an integer"))
		return
	}
	r, err := strconv.Atoi(c.Query("r"))
	if err != nil {
		response.Error(c, xerrors.InvalidArg("query parameter r must be an integer"))
		return
	}

	sum, err := h.engine.Query(c.Request.Context(), c.Param("name"), l, r)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"l": l, "r": r, "sum": sum})
}

type bulkUpdateRequest struct {
	Updates []updateRequest `json:"updates" binding:"required,min=1,max=10000,dive"`
}

// BulkUpdate 接收一批区间更新并异步应用，入队成功即返回 202。
// 各条更新之间不保证原子性，但每条更新自身是原子的。
func (h *TableHandler) BulkUpdate(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, xerrors.InvalidArg("invalid request body").WithDetail("%v", err))
		return
	}

	name := c.Param("name")
	// 入队前确认表存在，避免将必然失败的任务堆进队列。
	if _, err := h.engine.Stats(c.Request.Context(), name); err != nil {
		response.Error(c, err)
		return
	}

	updates := req.Updates
	task := func(ctx context.Context) {
		for _, u := range updates {
			if err := h.engine.Update(ctx, name, u.L, u.R, u.Delta); err != nil {
				h.logger.ErrorContext(ctx, "bulk update entry failed",
					"table", name, "l", u.L, "r", u.R, "error", err)
			}
		}
	}

	if err := h.pool.SubmitWithTimeout(task, submitTimeout); err != nil {
		response.Error(c, xerrors.New(xerrors.ErrUnavailable, 503, "bulk update queue is saturated", "", err))
		return
	}
	response.SuccessWithStatus(c, http.StatusAccepted, gin.H{"accepted": len(updates)})
}
