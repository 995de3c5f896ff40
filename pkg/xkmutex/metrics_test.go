package xkmutex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetrics(t *testing.T) {
	t.Run("nil provider returns nil", func(t *testing.T) {
		m, err := newMetrics(nil)
		assert.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("noop provider creates collector", func(t *testing.T) {
		m, err := newMetrics(noop.NewMeterProvider())
		require.NoError(t, err)
		assert.NotNil(t, m)
	})
}

func TestNilMetricsRecordIsNoop(t *testing.T) {
	// 未注入 MeterProvider 时收集器为 nil，记录方法必须安全
	var m *metrics
	assert.NotPanics(t, func() {
		m.recordAcquire(context.Background(), outcomeAcquired, time.Millisecond)
		m.recordRelease(context.Background())
	})
}

func TestMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	lk, err := New[string](
		WithWaitTimeout[string](20*time.Millisecond),
		WithMeterProvider[string](provider),
	)
	require.NoError(t, err)
	defer func() { require.NoError(t, lk.Close()) }()

	ctx := context.Background()

	// 成功获取 → acquired；占用中超时 → timeout；TryAcquire 占用 → held；释放 → release
	tok, err := lk.Acquire(ctx, "key1")
	require.NoError(t, err)
	_, err = lk.Acquire(ctx, "key1")
	require.ErrorIs(t, err, ErrLockTimeout)
	_, err = lk.TryAcquire("key1")
	require.ErrorIs(t, err, ErrLockHeld)
	require.NoError(t, tok.Release())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	acquireByOutcome := map[string]int64{}
	var releaseTotal int64
	var durationCount uint64

	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != "xkmutex" {
			continue
		}
		for _, m := range sm.Metrics {
			switch m.Name {
			case metricNameAcquireTotal:
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					acquireByOutcome[outcomeAttr(t, dp.Attributes)] += dp.Value
				}
			case metricNameReleaseTotal:
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					releaseTotal += dp.Value
				}
			case metricNameAcquireDuration:
				hist, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				for _, dp := range hist.DataPoints {
					durationCount += dp.Count
				}
			}
		}
	}

	assert.Equal(t, int64(1), acquireByOutcome[outcomeAcquired])
	assert.Equal(t, int64(1), acquireByOutcome[outcomeTimeout])
	assert.Equal(t, int64(1), acquireByOutcome[outcomeHeld])
	assert.Equal(t, int64(1), releaseTotal)
	assert.Equal(t, uint64(3), durationCount, "every acquire attempt records a duration sample")
}

func TestMetricsRejectedOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	lk, err := New[string](
		WithMaxKeys[string](1),
		WithMeterProvider[string](provider),
	)
	require.NoError(t, err)
	defer func() { require.NoError(t, lk.Close()) }()

	ctx := context.Background()
	tok, err := lk.Acquire(ctx, "key1")
	require.NoError(t, err)
	_, err = lk.Acquire(ctx, "key2")
	require.ErrorIs(t, err, ErrTooManyKeys)
	require.NoError(t, tok.Release())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var rejected int64
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != "xkmutex" {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name != metricNameAcquireTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if outcomeAttr(t, dp.Attributes) == outcomeRejected {
					rejected += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), rejected)
}

// outcomeAttr 从数据点属性中取出 outcome 标签值。
func outcomeAttr(t *testing.T, attrs attribute.Set) string {
	t.Helper()
	v, ok := attrs.Value(attribute.Key(attrOutcome))
	require.True(t, ok, "data point must carry the outcome attribute")
	return v.AsString()
}
