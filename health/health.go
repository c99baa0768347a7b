// Package health 汇总依赖的健康检查结果，并以 HTTP 探针的形式暴露。
package health

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/wyfcoding/rmq/engine"
)

const defaultTimeout = 2 * time.Second

// Checker 定义健康检查函数原型。
type Checker func(ctx context.Context) error

// Result 是一次检查的结果。
type Result struct {
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report 是所有检查的汇总。
type Report struct {
	Status string            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

// Registry 保存具名检查项，可并发使用。
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry 创建注册表，timeout 为单项检查的超时时间。
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Registry{checkers: make(map[string]Checker), timeout: timeout}
}

// Register 添加或替换检查项。
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	r.checkers[name] = c
	r.mu.Unlock()
}

// Check 并发执行所有检查项。单项检查超时后即记为失败，不等待其返回。
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checkers := maps.Clone(r.checkers)
	r.mu.RUnlock()

	rep := Report{Status: "up", Checks: make(map[string]Result, len(checkers))}
	var mu sync.Mutex
	var wg conc.WaitGroup
	for _, name := range slices.Sorted(maps.Keys(checkers)) {
		check := checkers[name]
		wg.Go(func() {
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			start := time.Now()
			err := runCheck(cctx, check)
			res := Result{Status: "up", Duration: time.Since(start)}
			if err != nil {
				res.Status, res.Error = "down", err.Error()
			}

			mu.Lock()
			rep.Checks[name] = res
			if err != nil {
				rep.Status = "down"
			}
			mu.Unlock()
		})
	}
	wg.Wait()
	return rep
}

// runCheck 在独立 goroutine 中执行 check，ctx 结束时立即返回 ctx.Err()。
// 忽略 ctx 的检查项会在后台继续运行直到自行返回。
func runCheck(ctx context.Context, check Checker) error {
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler 返回健康探针，任一检查失败时响应 503。
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rep := r.Check(req.Context())
		w.Header().Set("Content-Type", "application/json")
		if rep.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(rep)
	})
}

// IndexChecker 在 names 中任一索引未加载时报告失败。
func IndexChecker(e *engine.Engine, names ...string) Checker {
	return func(context.Context) error {
		if e == nil {
			return errors.New("index engine is nil")
		}
		var errs []error
		for _, name := range names {
			if _, err := e.Get(name); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
