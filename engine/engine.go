// Package engine 维护按名称注册的 LCA 索引：从 TreeSource 读取父子边，校验为有根树后构建欧拉序列稀疏表，
// 以 LRU 控制常驻索引数量，并用 singleflight 合并同名索引的并发构建。
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wyfcoding/rmq/algorithm/graph"
	"github.com/wyfcoding/rmq/algorithm/rmq"
	"github.com/wyfcoding/rmq/config"
	"github.com/wyfcoding/rmq/logging"
	"github.com/wyfcoding/rmq/metrics"
	"github.com/wyfcoding/rmq/tracing"
	"github.com/wyfcoding/rmq/xerrors"
	"golang.org/x/sync/singleflight"
)

// Engine 是并发安全的索引注册中心。
type Engine struct {
	cache   *lru.Cache[string, *Index]
	flight  singleflight.Group
	logger  *logging.Logger
	metrics *metrics.IndexMetrics

	mu        sync.RWMutex
	opts      []rmq.Option
	slowBuild time.Duration
}

// New 按 cfg 创建注册中心。logger 为 nil 时使用全局默认 Logger，m 为 nil 时使用独立注册表。
func New(cfg config.IndexConfig, logger *logging.Logger, m *metrics.Metrics) (*Engine, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if m == nil {
		m = metrics.NewMetrics("rmq-engine")
	}

	e := &Engine{
		logger:  logger.Named("engine"),
		metrics: metrics.NewIndexMetrics(m),
	}
	m.RegisterBuildInfo("rmq-engine", "")
	cache, err := lru.NewWithEvict(max(cfg.CacheSize, 1), e.onRemove)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrInvalidArg, "create index cache")
	}
	e.cache = cache

	if err := e.Apply(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply 更新构建参数与缓存容量，供配置热更新使用。已有索引保持原布局。
func (e *Engine) Apply(cfg config.IndexConfig) error {
	layout, err := rmq.ParseLayout(cfg.Layout)
	if err != nil {
		return err
	}
	opts := []rmq.Option{
		rmq.WithLayout(layout),
		rmq.WithParallelism(cfg.Workers, cfg.ParallelThreshold),
	}

	e.mu.Lock()
	e.opts = opts
	e.slowBuild = cfg.SlowBuild
	e.mu.Unlock()

	if cfg.CacheSize > 0 && e.cache != nil {
		if evicted := e.cache.Resize(cfg.CacheSize); evicted > 0 {
			e.metrics.Evictions.Add(float64(evicted))
			e.logger.Info("index cache resized", "size", cfg.CacheSize, "evicted", evicted)
		}
	}
	return nil
}

// RegisterReloadHook 在配置热更新时刷新 Engine 的构建参数。
func (e *Engine) RegisterReloadHook() {
	config.RegisterReloadHook(func(c *config.Config) {
		if err := e.Apply(c.Index); err != nil {
			e.logger.Error("apply index config failed", "error", err)
		}
	})
}

// Build 从 src 读取树并(重新)构建名为 name 的索引，成功后替换旧索引。
// 同一名称的并发 Build 只执行一次，所有调用方共享结果。
func (e *Engine) Build(ctx context.Context, name string, src TreeSource) (*Index, error) {
	v, err, shared := e.flight.Do(name, func() (any, error) {
		return e.build(ctx, name, src)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.logger.DebugContext(ctx, "index build shared", "index", name)
	}
	return v.(*Index), nil
}

// Load 返回已注册的索引，不存在时从 src 构建。
func (e *Engine) Load(ctx context.Context, name string, src TreeSource) (*Index, error) {
	if idx, ok := e.cache.Get(name); ok {
		return idx, nil
	}
	v, err, _ := e.flight.Do(name, func() (any, error) {
		// 双重检查：等待期间其他调用方可能已经完成构建。
		if idx, ok := e.cache.Get(name); ok {
			return idx, nil
		}
		return e.build(ctx, name, src)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

func (e *Engine) build(ctx context.Context, name string, src TreeSource) (_ *Index, err error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Build")
	defer span.End()
	tracing.AddTag(ctx, "index", name)

	e.mu.RLock()
	opts, slow := e.opts, e.slowBuild
	e.mu.RUnlock()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			tracing.SetError(ctx, err)
			e.logger.ErrorContext(ctx, "index build failed", "index", name, "error", err)
		}
		e.metrics.BuildsTotal.WithLabelValues(status).Inc()
	}()

	if src == nil {
		return nil, xerrors.ErrSourceUnavailable.Derive("index %s: nil tree source", name)
	}
	edges, err := src.Edges(ctx)
	if err != nil {
		var xe *xerrors.Error
		if errors.As(err, &xe) {
			return nil, err
		}
		return nil, xerrors.ErrSourceUnavailable.Derive("index %s", name).WithCause(err)
	}

	traverse, err := parentTraversal(edges)
	if err != nil {
		return nil, err
	}
	lca, err := graph.NewEulerLCA(traverse, opts...)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Name:    name,
		BuiltAt: time.Now(),
		lca:     lca,
		tourLen: len(lca.Depths()),
	}
	elapsed := time.Since(start)

	if e.cache.Add(name, idx) {
		e.metrics.Evictions.Inc()
	}
	e.metrics.BuildDuration.WithLabelValues(idx.Layout().String()).Observe(elapsed.Seconds())
	e.metrics.TourLength.WithLabelValues(name).Set(float64(idx.tourLen))
	e.metrics.TableEntries.WithLabelValues(name).Set(float64(idx.Entries()))

	tracing.AddTag(ctx, "vertices", idx.Len())
	tracing.AddTag(ctx, "layout", idx.Layout().String())

	args := []any{"index", name, "vertices", idx.Len(), "entries", idx.Entries(), "duration", elapsed}
	if slow > 0 && elapsed >= slow {
		e.logger.WarnContext(ctx, "slow index build", args...)
	} else {
		e.logger.InfoContext(ctx, "index built", args...)
	}
	return idx, nil
}

// parentTraversal 把 Parent 为空的边视为根或孤立顶点的声明。
func parentTraversal(edges []Edge) (graph.Traversal[string], error) {
	tree := make([]graph.Edge[string], 0, len(edges))
	var isolated []string
	for _, e := range edges {
		if e.Child == "" {
			return nil, xerrors.ErrNotTree.Derive("edge with empty child (parent %q)", e.Parent)
		}
		if e.Parent == "" {
			isolated = append(isolated, e.Child)
			continue
		}
		tree = append(tree, graph.Edge[string]{Child: e.Child, Parent: e.Parent})
	}
	return graph.ParentTraversal(tree, isolated...)
}

// Get 返回名为 name 的索引。
func (e *Engine) Get(name string) (*Index, error) {
	idx, ok := e.cache.Get(name)
	if !ok {
		return nil, xerrors.ErrIndexNotFound.Derive("index %s", name).WithContext("index", name)
	}
	return idx, nil
}

// LCA 在名为 name 的索引上查询最近公共祖先。
func (e *Engine) LCA(ctx context.Context, name, u, v string) (string, error) {
	idx, err := e.Get(name)
	if err == nil {
		var w string
		w, err = idx.LCA(u, v)
		e.recordQuery(ctx, "lca", name, err)
		return w, err
	}
	e.recordQuery(ctx, "lca", name, err)
	return "", err
}

// Distance 在名为 name 的索引上查询 u 与 v 之间的边数。
func (e *Engine) Distance(ctx context.Context, name, u, v string) (int, error) {
	idx, err := e.Get(name)
	if err == nil {
		var d int
		d, err = idx.Distance(u, v)
		e.recordQuery(ctx, "distance", name, err)
		return d, err
	}
	e.recordQuery(ctx, "distance", name, err)
	return 0, err
}

func (e *Engine) recordQuery(ctx context.Context, op, name string, err error) {
	status := "success"
	switch {
	case errors.Is(err, xerrors.ErrIndexNotFound):
		status = "index_not_found"
	case errors.Is(err, xerrors.ErrUnknownVertex):
		status = "unknown_vertex"
	case err != nil:
		status = "error"
	}
	e.metrics.QueriesTotal.WithLabelValues(op, status).Inc()
	if err != nil {
		e.logger.DebugContext(ctx, "index query rejected", "op", op, "index", name, "error", err)
	}
}

// Drop 删除名为 name 的索引，返回它是否存在。
func (e *Engine) Drop(name string) bool {
	return e.cache.Remove(name)
}

// Names 按从旧到新的使用顺序返回已注册的索引名。
func (e *Engine) Names() []string {
	return e.cache.Keys()
}

// Len 返回已注册的索引数。
func (e *Engine) Len() int {
	return e.cache.Len()
}

// onRemove 在索引被淘汰或删除时清理它的指标序列。
func (e *Engine) onRemove(name string, idx *Index) {
	e.metrics.TourLength.DeleteLabelValues(name)
	e.metrics.TableEntries.DeleteLabelValues(name)
	e.logger.Info("index removed", "index", name, "vertices", idx.Len())
}
