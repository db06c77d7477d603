package kafka

import (
	"context"
	"errors"
	"testing"

	"paydash-go/pkg/tasks"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProcessor 前 failures 次调用返回错误。
type flakyProcessor struct {
	failures int
	calls    int
}

func (p *flakyProcessor) Process(context.Context, tasks.InteractionEvent) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("mysql down")
	}
	return nil
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestProcessWithRetryRecoversOnSameEvent(t *testing.T) {
	rdb, mr := newRedis(t)
	p := &flakyProcessor{failures: maxAttempts - 1}
	event := tasks.InteractionEvent{EventID: "e1"}

	err := processWithRetry(context.Background(), p, rdb, event, 0)
	require.NoError(t, err)
	assert.Equal(t, maxAttempts, p.calls)
	assert.False(t, mr.Exists(attemptsKey("e1")), "counter cleared after success")
}

func TestProcessWithRetryGivesUp(t *testing.T) {
	rdb, mr := newRedis(t)
	p := &flakyProcessor{failures: 100}

	err := processWithRetry(context.Background(), p, rdb, tasks.InteractionEvent{EventID: "e2"}, 0)
	assert.EqualError(t, err, "mysql down")
	assert.Equal(t, maxAttempts, p.calls)
	got, err := mr.Get(attemptsKey("e2"))
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestProcessWithRetryCountsEarlierFailures(t *testing.T) {
	rdb, mr := newRedis(t)
	// 上一次进程在提交前退出，已经失败过两次
	require.NoError(t, mr.Set(attemptsKey("e3"), "2"))
	p := &flakyProcessor{failures: 100}

	err := processWithRetry(context.Background(), p, rdb, tasks.InteractionEvent{EventID: "e3"}, 0)
	assert.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestProcessWithRetryWithoutRedis(t *testing.T) {
	p := &flakyProcessor{failures: 100}
	err := processWithRetry(context.Background(), p, nil, tasks.InteractionEvent{EventID: "e4"}, 0)
	assert.Error(t, err)
	assert.Equal(t, maxAttempts, p.calls)
}

func TestProcessWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &flakyProcessor{failures: 100}
	err := processWithRetry(ctx, p, nil, tasks.InteractionEvent{EventID: "e5"}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}
