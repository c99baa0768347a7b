package breaker

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wyfcoding/rmq/config"
)

// DynamicBreaker 提供支持热更新的熔断器封装，配合 config.RegisterReloadHook 使用。
type DynamicBreaker struct {
	value        atomic.Pointer[Breaker]
	name         string
	failureRatio float64
	minRequests  uint32
	state        *prometheus.GaugeVec
}

// NewDynamicBreaker 创建动态熔断器并按 cfg 完成首次装载。
func NewDynamicBreaker(name string, cfg config.CircuitBreakerConfig, state *prometheus.GaugeVec, failureRatio float64, minRequests uint32) *DynamicBreaker {
	d := &DynamicBreaker{
		name:         name,
		failureRatio: failureRatio,
		minRequests:  minRequests,
		state:        state,
	}
	d.Update(cfg)
	return d
}

// Update 根据最新配置重建熔断器，计数随之清零。
func (d *DynamicBreaker) Update(cfg config.CircuitBreakerConfig) {
	if d == nil {
		return
	}
	d.value.Store(NewBreaker(Settings{
		Name:         d.name,
		Config:       cfg,
		FailureRatio: d.failureRatio,
		MinRequests:  d.minRequests,
	}, d.state))
}

// Current 返回当前生效的熔断器。
func (d *DynamicBreaker) Current() *Breaker {
	if d == nil {
		return nil
	}
	return d.value.Load()
}

// Execute 执行受熔断保护的函数。
func (d *DynamicBreaker) Execute(fn func() (any, error)) (any, error) {
	return ExecuteTyped(d.Current(), fn)
}
