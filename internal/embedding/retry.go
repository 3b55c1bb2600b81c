package embedding

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy 显式重试策略，统一套在所有外部调用上。
// 替代注解式的重试装饰：最大尝试次数、基础延迟、退避倍数、抖动比例。
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	// Jitter 每次延迟上叠加的随机比例，[0,1)
	Jitter float64
}

// DefaultRetryPolicy 默认策略：3次尝试，2s起步，指数翻倍，封顶30s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// Do 执行 fn，失败时按策略退避重试，耗尽后返回最后一次错误。
// 等待期间尊重 ctx 取消。
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	delay := p.BaseDelay

	for i := 0; i < attempts; i++ {
		if i > 0 {
			wait := delay
			if p.Jitter > 0 {
				wait += time.Duration(rand.Float64() * p.Jitter * float64(delay))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}

			delay = time.Duration(float64(delay) * p.Multiplier)
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}
