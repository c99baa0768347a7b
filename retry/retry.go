// Package retry 提供指数退避重试机制.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/wyfcoding/rmq/xerrors"
)

// ErrExhausted 表示重试次数耗尽, 最后一次失败作为 Cause.
var ErrExhausted = xerrors.New(xerrors.ErrUnavailable, 503301, "retry attempts exhausted", "", nil)

// Config 封装了重试策略的控制参数.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
	MaxRetries     int
}

// DefaultRetryConfig 返回一个通用的默认重试配置.
func DefaultRetryConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// Retry 对所有错误重试 fn.
func Retry(ctx context.Context, fn func() error, cfg Config) error {
	_, err := Do(ctx, func() (struct{}, error) { return struct{}{}, fn() }, func(error) bool { return true }, cfg)
	return err
}

// Do 执行 fn, 仅在 shouldRetry 返回 true 时按退避策略重试. MaxRetries < 0 时只执行一次.
// 不可重试的错误原样返回; 重试耗尽时返回以最后一次错误为 Cause 的 ErrExhausted.
func Do[T any](ctx context.Context, fn func() (T, error), shouldRetry func(error) bool, cfg Config) (T, error) {
	if cfg.MaxRetries < 0 {
		return fn()
	}

	var zero T
	backoff := cfg.InitialBackoff

	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !shouldRetry(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			return zero, ErrExhausted.Derive("%d attempts", attempt+1).WithCause(err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ErrExhausted.Derive("cancelled after %d attempts", attempt+1).WithCause(ctx.Err())
		case <-timer.C:
		}

		next := float64(backoff) * cfg.Multiplier
		if cfg.Jitter > 0 {
			next += (rand.Float64()*2 - 1) * cfg.Jitter * next
		}
		backoff = time.Duration(next)
		if cfg.MaxBackoff > 0 {
			backoff = min(backoff, cfg.MaxBackoff)
		}
	}
}
