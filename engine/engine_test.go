package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wyfcoding/rangesum/cache"
	"github.com/wyfcoding/rangesum/config"
	"github.com/wyfcoding/rangesum/xerrors"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return New(config.EngineConfig{}, opts...)
}

func TestCreateAndDropTable(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if err := e.CreateTable(ctx, "orders", 8); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if got := e.TableCount(); got != 1 {
		t.Fatalf("expected 1 table, got %d", got)
	}

	if err := e.CreateTable(ctx, "orders", 8); err == nil {
		t.Fatal("expected error for duplicate table name")
	} else if xe, ok := xerrors.FromError(err); !ok || xe.Type != xerrors.ErrAlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}

	if err := e.DropTable(ctx, "orders"); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}
	if err := e.DropTable(ctx, "orders"); err == nil {
		t.Fatal("expected error when dropping a missing table")
	} else if xe, ok := xerrors.FromError(err); !ok || xe.Type != xerrors.ErrNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCreateTableValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if err := e.CreateTable(ctx, "", 8); err == nil {
		t.Fatal("expected error for empty table name")
	}
	if err := e.CreateTable(ctx, "bad", 0); err == nil {
		t.Fatal("expected error for zero-size table")
	} else if xe, ok := xerrors.FromError(err); !ok || xe.Type != xerrors.ErrInvalidArg {
		t.Fatalf("expected InvalidArg, got %v", err)
	}
}

func TestCapacityLimits(t *testing.T) {
	ctx := context.Background()
	e := New(config.EngineConfig{MaxTables: 1, MaxTableSize: 10})

	if err := e.CreateTable(ctx, "big", 11); err == nil {
		t.Fatal("expected error for oversized table")
	} else if xe, ok := xerrors.FromError(err); !ok || xe.Type != xerrors.ErrLimitExceeded {
		t.Fatalf("expected LimitExceeded, got %v", err)
	}

	if err := e.CreateTable(ctx, "a", 5); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := e.CreateTable(ctx, "b", 5); err == nil {
		t.Fatal("expected error when exceeding the table count limit")
	} else if xe, ok := xerrors.FromError(err); !ok || xe.Type != xerrors.ErrLimitExceeded {
		t.Fatalf("expected LimitExceeded, got %v", err)
	}
}

func TestUpdateAndQuery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if err := e.CreateTable(ctx, "scores", 8); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	if err := e.Update(ctx, "scores", 2, 5, 3); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	sum, err := e.Query(ctx, "scores", 0, 7)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if sum != 12 {
		t.Fatalf("expected total sum 12, got %d", sum)
	}

	sum, err = e.Query(ctx, "scores", 4, 6)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if sum != 6 {
		t.Fatalf("expected partial sum 6, got %d", sum)
	}
}

func TestUnknownTable(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if err := e.Update(ctx, "missing", 0, 1, 1); err == nil {
		t.Fatal("expected error updating a missing table")
	}
	if _, err := e.Query(ctx, "missing", 0, 1); err == nil {
		t.Fatal("expected error querying a missing table")
	} else if xe, ok := xerrors.FromError(err); !ok || xe.Type != xerrors.ErrNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestInvalidRangeMapping(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if err := e.CreateTable(ctx, "t", 4); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	if err := e.Update(ctx, "t", 3, 1, 1); err == nil {
		t.Fatal("expected error for reversed range")
	} else if xe, ok := xerrors.FromError(err); !ok || xe.Type != xerrors.ErrInvalidArg {
		t.Fatalf("expected InvalidArg, got %v", err)
	}
	if _, err := e.Query(ctx, "t", 0, 4); err == nil {
		t.Fatal("expected error for out-of-bounds range")
	}
}

func TestStatsTracksVersionAndCounters(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if err := e.CreateTable(ctx, "t", 4); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	for i := range 3 {
		if err := e.Update(ctx, "t", 0, i, 1); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	if _, err := e.Query(ctx, "t", 0, 3); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	info, err := e.Stats(ctx, "t")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if info.Version != 3 || info.Updates != 3 || info.Queries != 1 {
		t.Fatalf("unexpected stats: %+v", info)
	}
	if info.Size != 4 {
		t.Fatalf("expected size 4, got %d", info.Size)
	}
}

func TestListTables(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	for _, name := range []string{"a", "b", "c"} {
		if err := e.CreateTable(ctx, name, 4); err != nil {
			t.Fatalf("CreateTable failed: %v", err)
		}
	}

	infos := e.List(ctx)
	if len(infos) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(infos))
	}
	seen := make(map[string]bool)
	for _, info := range infos {
		seen[info.Name] = true
	}
	for _, name := range []string{"a", "b", "c"} {
		if !seen[name] {
			t.Fatalf("table %q missing from listing", name)
		}
	}
}

// memoryCache 是测试用的进程内缓存实现。
type memoryCache struct {
	mu   sync.Mutex
	data map[string]int64
	gets int
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]int64)}
}

func (m *memoryCache) Get(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	if p, ok := value.(*int64); ok {
		*p = v
	}
	return nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if v, ok := value.(int64); ok {
		m.data[key] = v
	}
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memoryCache) Close() error { return nil }

func TestQueryCacheCoherence(t *testing.T) {
	ctx := context.Background()
	mc := newMemoryCache()
	e := newTestEngine(t, WithCache(mc, time.Minute))

	if err := e.CreateTable(ctx, "t", 8); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := e.Update(ctx, "t", 0, 7, 2); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	sum, err := e.Query(ctx, "t", 0, 7)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if sum != 16 {
		t.Fatalf("expected 16, got %d", sum)
	}

	// 第二次相同查询应命中缓存且结果一致。
	setsBefore := mc.sets
	sum, err = e.Query(ctx, "t", 0, 7)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if sum != 16 {
		t.Fatalf("expected cached 16, got %d", sum)
	}
	if mc.sets != setsBefore {
		t.Fatal("expected the second query to be served from cache")
	}

	// 更新推进版本后，旧缓存条目不得再被返回。
	if err := e.Update(ctx, "t", 0, 0, 5); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	sum, err = e.Query(ctx, "t", 0, 7)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if sum != 21 {
		t.Fatalf("expected 21 after update, got %d", sum)
	}
}

type failingCache struct{}

func (failingCache) Get(context.Context, string, any) error { return errors.New("cache down") }
func (failingCache) Set(context.Context, string, any, time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) Delete(context.Context, ...string) error       { return errors.New("cache down") }
func (failingCache) Exists(context.Context, string) (bool, error)  { return false, errors.New("cache down") }
func (failingCache) Close() error                                  { return nil }

func TestQuerySurvivesCacheFailure(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithCache(failingCache{}, time.Minute))

	if err := e.CreateTable(ctx, "t", 4); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := e.Update(ctx, "t", 0, 3, 1); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	sum, err := e.Query(ctx, "t", 0, 3)
	if err != nil {
		t.Fatalf("Query should not fail when the cache is down: %v", err)
	}
	if sum != 4 {
		t.Fatalf("expected 4, got %d", sum)
	}
}

func TestConcurrentUpdatesAndQueries(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if err := e.CreateTable(ctx, "t", 64); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				if err := e.Update(ctx, "t", (w+i)%64, 63, 1); err != nil {
					t.Errorf("Update failed: %v", err)
					return
				}
				if _, err := e.Query(ctx, "t", 0, 63); err != nil {
					t.Errorf("Query failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	info, err := e.Stats(ctx, "t")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if info.Updates != workers*perWorker {
		t.Fatalf("expected %d updates, got %d", workers*perWorker, info.Updates)
	}
}
