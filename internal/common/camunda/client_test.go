package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"notification-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(stderrors.New("rpc error: code = Unavailable")))
	assert.True(t, isRetryableZeebeError(stderrors.New("context deadline exceeded")))
	assert.False(t, isRetryableZeebeError(stderrors.New("NOT_FOUND: job 12 not found")))
}

func TestMapZeebeError(t *testing.T) {
	err := mapZeebeError(stderrors.New("context deadline exceeded"), "complete job")
	assert.True(t, errors.HasCode(err, errors.ErrCodeTimeout))

	err = mapZeebeError(stderrors.New("job not found"), "complete job")
	assert.True(t, errors.HasCode(err, errors.ErrCodeExternalService))
}

func TestExecuteWithRetry(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}}}

	t.Run("recovers from transient error", func(t *testing.T) {
		calls := 0
		err := c.executeWithRetry(context.Background(), "complete job", func(context.Context) error {
			calls++
			if calls < 2 {
				return stderrors.New("unavailable")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := c.executeWithRetry(context.Background(), "complete job", func(context.Context) error {
			calls++
			return stderrors.New("connection refused")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent error", func(t *testing.T) {
		calls := 0
		err := c.executeWithRetry(context.Background(), "fail job", func(context.Context) error {
			calls++
			return stderrors.New("job not found")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestLongPollContext(t *testing.T) {
	ctx, cancel := longPollContext(context.Background(), 20*time.Second)
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(20*time.Second), deadline, time.Second)

	ctx, cancel = longPollContext(context.Background(), 0)
	_, ok = ctx.Deadline()
	assert.False(t, ok)
	cancel()
	assert.Error(t, ctx.Err())
}
