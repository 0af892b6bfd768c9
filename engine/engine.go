// Package engine 实现了多表区间聚合引擎。
// 每张表由一棵支持区间加与区间求和的线段树承载，表内操作由互斥锁串行化，
// 表的增删查由引擎级读写锁保护。查询结果可选地写入版本化的本地缓存，
// 任意一次更新都会推进表版本，使旧版本的缓存条目自然失效。
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/rangesum/cache"
	"github.com/wyfcoding/rangesum/config"
	"github.com/wyfcoding/rangesum/metrics"
	"github.com/wyfcoding/rangesum/segtree"
	"github.com/wyfcoding/rangesum/tracing"
	"github.com/wyfcoding/rangesum/xerrors"
)

// TableInfo 描述一张表的元信息与运行统计。
type TableInfo struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	Version   uint64    `json:"version"`
	Updates   uint64    `json:"updates"`
	Queries   uint64    `json:"queries"`
	CreatedAt time.Time `json:"created_at"`
}

// table 是单张表的运行时载体。
// mu 串行化对 tree 的全部读写；version 在每次成功更新后递增，
// 作为查询缓存键的一部分保证缓存一致性。
type table struct {
	mu        sync.Mutex
	tree      *segtree.Tree[int64]
	version   atomic.Uint64
	updates   atomic.Uint64
	queries   atomic.Uint64
	createdAt time.Time
}

// Engine 管理全部命名表并承载操作入口。
type Engine struct {
	mu     sync.RWMutex
	tables map[string]*table

	cfg     config.EngineConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   cache.Cache
	ttl     time.Duration
}

// Option 定义引擎的可选装配项。
type Option func(*Engine)

// WithLogger 注入日志器。
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics 注入指标采集器。
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithCache 注入查询结果缓存及其 TTL。
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = c
		e.ttl = ttl
	}
}

// New 创建一个聚合引擎。
func New(cfg config.EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		tables: make(map[string]*table),
		cfg:    cfg,
		logger: slog.Default(),
		ttl:    time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateTable 创建一张尺寸为 size 的表，所有元素初始为零。
func (e *Engine) CreateTable(ctx context.Context, name string, size int) error {
	ctx, span := tracing.StartSpan(ctx, "engine.CreateTable")
	defer span.End()
	tracing.AddTag(ctx, "table", name)
	tracing.AddTag(ctx, "size", size)

	start := time.Now()
	err := e.createTable(name, size)
	e.observe(ctx, name, "create", start, err)
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "table created", "table", name, "size", size)
	return nil
}

func (e *Engine) createTable(name string, size int) error {
	if name == "" {
		return xerrors.InvalidArg("table name must not be empty")
	}
	if e.cfg.MaxTableSize > 0 && size > e.cfg.MaxTableSize {
		return xerrors.LimitExceeded("table size exceeds the configured limit").
			WithContext("size", size).
			WithContext("max_table_size", e.cfg.MaxTableSize)
	}

	tree, err := segtree.New[int64](size)
	if err != nil {
		if errors.Is(err, segtree.ErrInvalidSize) {
			return xerrors.InvalidArg("table size must be at least 1").WithContext("size", size)
		}
		return xerrors.WrapInternal(err, "failed to build table")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables[name]; ok {
		return xerrors.AlreadyExists("table already exists").WithContext("table", name)
	}
	if e.cfg.MaxTables > 0 && len(e.tables) >= e.cfg.MaxTables {
		return xerrors.LimitExceeded("table count exceeds the configured limit").
			WithContext("max_tables", e.cfg.MaxTables)
	}

	e.tables[name] = &table{tree: tree, createdAt: time.Now()}
	if e.metrics != nil {
		e.metrics.Tables.Set(float64(len(e.tables)))
	}
	return nil
}

// DropTable 删除一张表，该表全部数据随之丢弃。
func (e *Engine) DropTable(ctx context.Context, name string) error {
	ctx, span := tracing.StartSpan(ctx, "engine.DropTable")
	defer span.End()
	tracing.AddTag(ctx, "table", name)

	start := time.Now()
	err := e.dropTable(name)
	e.observe(ctx, name, "drop", start, err)
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "table dropped", "table", name)
	return nil
}

func (e *Engine) dropTable(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables[name]; !ok {
		return xerrors.NotFound("table not found").WithContext("table", name)
	}
	delete(e.tables, name)
	if e.metrics != nil {
		e.metrics.Tables.Set(float64(len(e.tables)))
	}
	return nil
}

// Update 将 delta 加到表 name 的闭区间 [l, r] 上的每个元素。
func (e *Engine) Update(ctx context.Context, name string, l, r int, delta int64) error {
	ctx, span := tracing.StartSpan(ctx, "engine.Update")
	defer span.End()
	tracing.AddTag(ctx, "table", name)
	tracing.AddTag(ctx, "l", l)
	tracing.AddTag(ctx, "r", r)

	start := time.Now()
	err := e.update(name, l, r, delta)
	e.observe(ctx, name, "update", start, err)
	if err != nil {
		return err
	}

	e.logger.DebugContext(ctx, "range updated", "table", name, "l", l, "r", r, "delta", delta)
	return nil
}

func (e *Engine) update(name string, l, r int, delta int64) error {
	t, err := e.lookup(name)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.tree.Update(l, r, delta); err != nil {
		return mapTreeError(err, name, l, r)
	}
	// 版本推进使旧缓存键失效，无需主动删除缓存条目。
	t.version.Add(1)
	t.updates.Add(1)
	return nil
}

// Query 返回表 name 闭区间 [l, r] 内元素之和。
func (e *Engine) Query(ctx context.Context, name string, l, r int) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Query")
	defer span.End()
	tracing.AddTag(ctx, "table", name)
	tracing.AddTag(ctx, "l", l)
	tracing.AddTag(ctx, "r", r)

	start := time.Now()
	sum, err := e.query(ctx, name, l, r)
	e.observe(ctx, name, "query", start, err)
	if err != nil {
		return 0, err
	}
	return sum, nil
}

func (e *Engine) query(ctx context.Context, name string, l, r int) (int64, error) {
	t, err := e.lookup(name)
	if err != nil {
		return 0, err
	}

	if e.cache != nil {
		key := queryCacheKey(name, t.version.Load(), l, r)
		var cached int64
		if cacheErr := e.cache.Get(ctx, key, &cached); cacheErr == nil {
			e.countCache("hit")
			t.queries.Add(1)
			return cached, nil
		} else if !errors.Is(cacheErr, cache.ErrCacheMiss) {
			// 缓存故障不阻断查询，降级为直接计算。
			e.logger.WarnContext(ctx, "query cache read failed", "table", name, "error", cacheErr)
		}
		e.countCache("miss")
	}

	t.mu.Lock()
	sum, err := t.tree.Query(l, r)
	version := t.version.Load()
	t.mu.Unlock()
	if err != nil {
		return 0, mapTreeError(err, name, l, r)
	}
	t.queries.Add(1)

	if e.cache != nil {
		key := queryCacheKey(name, version, l, r)
		if cacheErr := e.cache.Set(ctx, key, sum, e.ttl); cacheErr != nil {
			e.logger.WarnContext(ctx, "query cache write failed", "table", name, "error", cacheErr)
		}
	}
	return sum, nil
}

// Stats 返回表 name 的元信息与运行统计。
func (e *Engine) Stats(ctx context.Context, name string) (TableInfo, error) {
	t, err := e.lookup(name)
	if err != nil {
		return TableInfo{}, err
	}
	return TableInfo{
		Name:      name,
		Size:      t.tree.Len(),
		Version:   t.version.Load(),
		Updates:   t.updates.Load(),
		Queries:   t.queries.Load(),
		CreatedAt: t.createdAt,
	}, nil
}

// List 返回全部表的元信息，按创建先后无序。
func (e *Engine) List(ctx context.Context) []TableInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]TableInfo, 0, len(e.tables))
	for name, t := range e.tables {
		infos = append(infos, TableInfo{
			Name:      name,
			Size:      t.tree.Len(),
			Version:   t.version.Load(),
			Updates:   t.updates.Load(),
			Queries:   t.queries.Load(),
			CreatedAt: t.createdAt,
		})
	}
	return infos
}

// TableCount 返回当前表数量。
func (e *Engine) TableCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tables)
}

func (e *Engine) lookup(name string) (*table, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.tables[name]
	if !ok {
		return nil, xerrors.NotFound("table not found").WithContext("table", name)
	}
	return t, nil
}

func (e *Engine) observe(ctx context.Context, tableName, op string, start time.Time, err error) {
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.OperationsTotal.WithLabelValues(tableName, op, status).Inc()
	e.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (e *Engine) countCache(result string) {
	if e.metrics != nil {
		e.metrics.CacheHitsTotal.WithLabelValues(result).Inc()
	}
}

func queryCacheKey(name string, version uint64, l, r int) string {
	return fmt.Sprintf("q:%s:%d:%d:%d", name, version, l, r)
}

func mapTreeError(err error, name string, l, r int) error {
	if errors.Is(err, segtree.ErrInvalidRange) {
		return xerrors.InvalidArg("range endpoints out of bounds").
			WithDetail("%v", err).
			WithContext("table", name).
			WithContext("l", l).
			WithContext("r", r)
	}
	return xerrors.WrapInternal(err, "range operation failed")
}
