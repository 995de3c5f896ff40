package bench

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// quietLogger 压测引擎在测试里不输出运行日志。
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunValidation(t *testing.T) {
	base := Config{Workers: 1, Keys: 1, Iterations: 1, Logger: quietLogger()}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"zero keys", func(c *Config) { c.Keys = 0 }},
		{"zero iterations", func(c *Config) { c.Iterations = 0 }},
		{"negative hold", func(c *Config) { c.Hold = -time.Millisecond }},
		{"negative retries", func(c *Config) { c.Retries = -1 }},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -time.Millisecond }},
		{"unknown policy", func(c *Config) { c.Policy = "retry" }},
		{"max keys below keyspace", func(c *Config) { c.Keys = 10; c.MaxKeys = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := Run(context.Background(), cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

// 无限等待下所有操作最终都应成功，没有超时也没有放弃。
func TestRunAllAcquired(t *testing.T) {
	rep, err := Run(context.Background(), Config{
		Workers:    4,
		Keys:       2,
		Iterations: 25,
		Wait:       -1,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, int64(100), rep.Operations)
	assert.Equal(t, int64(100), rep.Acquired)
	assert.Equal(t, int64(0), rep.Timeouts)
	assert.Equal(t, int64(0), rep.Exhausted)
	assert.Positive(t, rep.Throughput)
	assert.Positive(t, rep.Elapsed)
}

// fail 策略 + 不等待 + 不重试：每次放弃恰好对应一次超时。
func TestRunFailPolicyTimeouts(t *testing.T) {
	rep, err := Run(context.Background(), Config{
		Workers:    2,
		Keys:       1,
		Iterations: 25,
		Hold:       time.Millisecond,
		Wait:       0,
		Policy:     PolicyFail,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, rep.Operations, rep.Acquired+rep.Exhausted)
	assert.Equal(t, rep.Exhausted, rep.Timeouts, "不重试时每次超时即放弃")
	assert.Equal(t, int64(0), rep.Retries, "重试配额为零时报告不应出现重试")
	// 两个 worker 挤同一个 key 且持锁 1ms，必然产生碰撞。
	assert.Positive(t, rep.Timeouts)
}

// silent 策略的超时通过回调统计，计数关系与 fail 策略一致。
func TestRunSilentPolicyCountsViaCallback(t *testing.T) {
	rep, err := Run(context.Background(), Config{
		Workers:    2,
		Keys:       1,
		Iterations: 25,
		Hold:       time.Millisecond,
		Wait:       0,
		Policy:     PolicySilent,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, rep.Operations, rep.Acquired+rep.Exhausted)
	assert.Equal(t, rep.Exhausted, rep.Timeouts)
	assert.Positive(t, rep.Timeouts)
}

// 充足的重试配额下所有操作最终成功，且每次超时都对应一次重试。
func TestRunRetriesRecover(t *testing.T) {
	rep, err := Run(context.Background(), Config{
		Workers:    2,
		Keys:       1,
		Iterations: 20,
		Hold:       time.Millisecond,
		Wait:       0,
		Retries:    200,
		RetryDelay: time.Millisecond,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, rep.Operations, rep.Acquired)
	assert.Equal(t, int64(0), rep.Exhausted)
	assert.Equal(t, rep.Timeouts, rep.Retries, "没有放弃时每次超时都对应一次重试")
}

func TestRunMaxKeysCoversKeyspace(t *testing.T) {
	rep, err := Run(context.Background(), Config{
		Workers:    2,
		Keys:       4,
		Iterations: 10,
		Wait:       -1,
		MaxKeys:    4,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, rep.Operations, rep.Acquired)
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Config{
		Workers:    2,
		Keys:       1,
		Iterations: 100,
		Wait:       -1,
		Logger:     quietLogger(),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMakeKeys(t *testing.T) {
	keys := makeKeys(3)
	assert.Equal(t, []string{"key-0", "key-1", "key-2"}, keys)
}

func TestPickKey(t *testing.T) {
	const runID = "f6d8c5e0-0000-0000-0000-000000000000"

	// 同样的输入必须映射到同一个 key。
	first := pickKey(runID, 3, 7, 16)
	assert.Equal(t, first, pickKey(runID, 3, 7, 16))

	// 任意输入都应落在 [0, keys) 内。
	for worker := range 4 {
		for iter := range 64 {
			idx := pickKey(runID, worker, iter, 5)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, 5)
		}
	}
}
