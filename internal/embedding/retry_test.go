package embedding

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDoSucceedsFirstAttempt(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryDoRecoversAfterTransientFailure(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("瞬时故障 %d", calls)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}

	calls := 0
	wantErr := fmt.Errorf("持续故障")
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, wantErr, "耗尽后返回最后一次错误")
}

func TestRetryDoZeroAttemptsRunsOnce(t *testing.T) {
	p := RetryPolicy{}

	calls := 0
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("失败")
	})
	assert.Equal(t, 1, calls)
}

func TestRetryDoRespectsContextCancellation(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(ctx context.Context) error {
			calls++
			return fmt.Errorf("失败")
		})
	}()

	// 第一次失败后进入长退避，此时取消应立即返回
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("取消后Do未及时返回")
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.BaseDelay)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
}
